package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"laporan/internal/core"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-03-02 14:05:00", time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC), false},
		{"2026-03-02", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false},
		{" 2026-03-02 ", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false},
		{"02/03/2026", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTransactions(t *testing.T) {
	values := [][]string{
		{"Date", "Caster", "Service", "Price", "Payment_Method", "Branch"},
		{"2026-03-02 10:00:00", "Bagus", "Potong", "Rp 25.000", "Cash", "Cabang Denailla"},
		{"", "", "", "", "", ""},
		{"2026-03-02", "Andi", "Cukur", "abc", "QRIS"},
		{"kemarin", "Andi", "Cukur", "10000", "Cash", "Cabang Sumput"},
		{"2026-03-03", "", "Cukur", "10000", "Cash", "Cabang Sumput"},
	}
	got, err := ParseTransactions(values, time.UTC)
	if err != nil {
		t.Fatalf("ParseTransactions() error = %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("ParseTransactions() items = %d, want 2", len(got.Items))
	}
	if got.Items[0].Price != 25000 || got.Items[0].Capster != "Bagus" {
		t.Errorf("first row = %+v", got.Items[0])
	}
	// Short rows read missing cells as empty; a bad price is zero.
	if got.Items[1].Price != 0 || got.Items[1].Branch != "" {
		t.Errorf("second row = %+v, want price 0 and empty branch", got.Items[1])
	}
	if len(got.Skipped) != 2 {
		t.Fatalf("skipped = %v, want 2 entries", got.Skipped)
	}
	if got.Skipped[0].Row != 5 {
		t.Errorf("skipped[0].Row = %d, want 5", got.Skipped[0].Row)
	}
	if !errors.Is(got.Skipped[1], core.ErrEmptyCapster) {
		t.Errorf("skipped[1] = %v, want ErrEmptyCapster", got.Skipped[1])
	}
}

func TestParseTransactionsHeader(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]string
		wantErr bool
	}{
		{"empty sheet", nil, false},
		{"header only", [][]string{{"Date", "Capster", "Price"}}, false},
		{"missing price", [][]string{{"Date", "Capster", "Service"}}, true},
		{"missing capster", [][]string{{"Date", "Service", "Price"}}, true},
		{"case-insensitive", [][]string{{"date", "CAPSTER", "price"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransactions(tt.values, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTransactions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCapsters(t *testing.T) {
	values := [][]string{
		{"Name", "TelegramID", "Alias"},
		{"Bagus", "12345", "Gus"},
		{"bagus", "1", ""},
		{"Andi", "n/a", "Ndi"},
		{"", "99", "ghost"},
	}
	got, err := ParseCapsters(values)
	if err != nil {
		t.Fatalf("ParseCapsters() error = %v", err)
	}
	want := []core.Capster{
		{Name: "Bagus", TelegramID: 12345, Alias: "Gus"},
		{Name: "Andi", Alias: "Ndi"},
	}
	if len(got.Items) != len(want) {
		t.Fatalf("ParseCapsters() = %+v, want %+v", got.Items, want)
	}
	for i := range want {
		if got.Items[i] != want[i] {
			t.Errorf("ParseCapsters()[%d] = %+v, want %+v", i, got.Items[i], want[i])
		}
	}
	if len(got.Skipped) != 1 {
		t.Errorf("skipped = %v, want the nameless row", got.Skipped)
	}
}

func TestParseBranches(t *testing.T) {
	values := [][]string{
		{"BranchID", "Name", "Location", "Short", "Employees", "CommissionRate", "Cost_tempat", "Cost_listrik_air", "Cost_wifi"},
		{"cabang_a", "Cabang Denailla", "Mojosari", "Cabang A", "", "0", "520000", "400.000", "15000"},
		{"cabang_b", "Cabang Sumput", "Sumput", "Cabang B", "4", "50%", "792000", "", "30000"},
		{"cabang_c", "Cabang Rusak", "", "", "2", "150%", "0", "0", "0"},
		{"cabang_d", "Cabang Minus", "", "", "2", "0", "-5", "0", "0"},
	}
	got, err := ParseBranches(values)
	if err != nil {
		t.Fatalf("ParseBranches() error = %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("ParseBranches() items = %+v, want 2", got.Items)
	}

	a := got.Items[0]
	if a.Employees != 2 {
		t.Errorf("default employees = %d, want 2", a.Employees)
	}
	if a.FixedCostTotal() != 935000 {
		t.Errorf("Cabang Denailla fixed = %d, want 935000", a.FixedCostTotal())
	}
	if a.FixedCosts[1].Name != "listrik air" {
		t.Errorf("cost name = %q, want %q", a.FixedCosts[1].Name, "listrik air")
	}

	b := got.Items[1]
	if b.CommissionRate.String() != "0.5" || b.Employees != 4 {
		t.Errorf("Cabang Sumput = rate %s employees %d, want 0.5 and 4", b.CommissionRate, b.Employees)
	}
	if b.FixedCostTotal() != 822000 {
		t.Errorf("Cabang Sumput fixed = %d, want 822000", b.FixedCostTotal())
	}

	if len(got.Skipped) != 2 {
		t.Fatalf("skipped = %v, want 2", got.Skipped)
	}
	if !errors.Is(got.Skipped[0], core.ErrInvalidCommission) {
		t.Errorf("skipped[0] = %v, want ErrInvalidCommission", got.Skipped[0])
	}
	if !errors.Is(got.Skipped[1], core.ErrInvalidAmount) {
		t.Errorf("skipped[1] = %v, want ErrInvalidAmount", got.Skipped[1])
	}
}

type fakeDirectory struct {
	capsters    []core.Capster
	branches    []core.BranchConfig
	capsterErr  error
	branchesErr error
}

func (f fakeDirectory) Capsters(context.Context) ([]core.Capster, error) {
	return f.capsters, f.capsterErr
}

func (f fakeDirectory) Branches(context.Context) ([]core.BranchConfig, error) {
	return f.branches, f.branchesErr
}

func TestLoadDirectory(t *testing.T) {
	t.Run("defaults when no branches", func(t *testing.T) {
		d, err := LoadDirectory(context.Background(), fakeDirectory{
			capsters: []core.Capster{{Name: "Bagus", Alias: "Gus"}},
		})
		if err != nil {
			t.Fatalf("LoadDirectory() error = %v", err)
		}
		if len(d.Branches) != len(core.DefaultBranches()) {
			t.Errorf("branches = %d, want the defaults", len(d.Branches))
		}
		if got := d.Resolver().Canonical("gus"); got != "Bagus" {
			t.Errorf("Resolver().Canonical(gus) = %q, want Bagus", got)
		}
	})

	t.Run("configured branches kept", func(t *testing.T) {
		d, err := LoadDirectory(context.Background(), fakeDirectory{
			branches: []core.BranchConfig{{Name: "Cabang X"}},
		})
		if err != nil {
			t.Fatalf("LoadDirectory() error = %v", err)
		}
		if len(d.Branches) != 1 || d.Branches[0].Name != "Cabang X" {
			t.Errorf("branches = %+v", d.Branches)
		}
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := LoadDirectory(context.Background(), fakeDirectory{branchesErr: boom})
		if !errors.Is(err, boom) {
			t.Errorf("LoadDirectory() error = %v, want %v", err, boom)
		}
	})
}
