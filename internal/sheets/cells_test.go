package sheets

import "testing"

func TestCellString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  Comida ", "Comida"},
		{1234.56, "1234.56"},
		{1250000.0, "1250000"},
		{42, "42"},
		{int64(7), "7"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := CellString(tc.in); got != tc.want {
			t.Errorf("CellString(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecordsFromRows(t *testing.T) {
	rows := [][]string{
		{"Categoria", " Presupuesto ", ""},
		{"🍖 Comida", "50000"},
		{"", ""},
		{"🚗 Transporte", "20000", "extra"},
	}
	recs := RecordsFromRows(rows)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["Categoria"] != "🍖 Comida" || recs[0]["Presupuesto"] != "50000" {
		t.Fatalf("unexpected record %v", recs[0])
	}
	if _, ok := recs[1][""]; ok {
		t.Fatalf("blank headers must be dropped")
	}

	if RecordsFromRows([][]string{{"Categoria"}}) != nil {
		t.Fatalf("header-only table should have no records")
	}
}
