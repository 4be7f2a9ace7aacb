package grid

import "testing"

func TestValueParse(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
	}{
		{"", KindEmpty},
		{"   ", KindEmpty},
		{"hello", KindText},
		{"42", KindNumber},
		{"3.14", KindNumber},
		{"1,234", KindNumber},
		{"13/07/2025", KindText},
	}
	for _, tt := range tests {
		if got := Parse(tt.raw); got.Kind() != tt.kind {
			t.Errorf("Parse(%q).Kind() = %v, want %v", tt.raw, got.Kind(), tt.kind)
		}
	}
}

func TestValueNumberKeepsText(t *testing.T) {
	v := Parse("1,234")
	n, ok := v.Number()
	if !ok || n != 1234 {
		t.Fatalf("Number() = (%v, %v), want (1234, true)", n, ok)
	}
	if v.String() != "1,234" {
		t.Errorf("String() = %q, want original text preserved", v.String())
	}
}

func TestTableAddColumn(t *testing.T) {
	tbl := NewTable([]string{"a"})
	tbl.AppendRow([]Value{Number(1)})
	tbl.AppendRow([]Value{Number(2)})

	tbl.AddColumn("b", []Value{Text("x")})
	if len(tbl.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(tbl.Columns))
	}
	if got := tbl.Rows[1][1]; !got.IsEmpty() {
		t.Errorf("missing tail value should be empty, got %q", got.String())
	}

	// Adding an existing column overwrites in place.
	tbl.AddColumn("b", []Value{Text("y"), Text("z")})
	if len(tbl.Columns) != 2 {
		t.Fatalf("re-adding column must not grow the column set")
	}
	if tbl.Rows[0][1].String() != "y" {
		t.Errorf("overwrite failed, got %q", tbl.Rows[0][1].String())
	}
}

func TestTableDropColumn(t *testing.T) {
	tbl := NewTable([]string{"a", "b", "c"})
	tbl.AppendRow([]Value{Number(1), Number(2), Number(3)})
	if !tbl.DropColumn("b") {
		t.Fatal("DropColumn returned false for existing column")
	}
	if tbl.ColumnIndex("c") != 1 {
		t.Errorf("column c should shift left, index = %d", tbl.ColumnIndex("c"))
	}
	if tbl.Rows[0][1].String() != "3" {
		t.Errorf("row values should shift with columns, got %q", tbl.Rows[0][1].String())
	}
	if tbl.DropColumn("missing") {
		t.Error("DropColumn should return false for absent column")
	}
}

func TestColumnAllBlankAndNumeric(t *testing.T) {
	tbl := NewTable([]string{"empty", "nums", "mixed"})
	tbl.AppendRow([]Value{Empty(), Number(1), Text("abc")})
	tbl.AppendRow([]Value{Text("  "), Text("2"), Number(5)})

	if !tbl.ColumnAllBlank(0) {
		t.Error("column 0 should be all blank")
	}
	if !tbl.ColumnAllNumeric(1) {
		t.Error("column 1 should be all numeric")
	}
	if tbl.ColumnAllNumeric(2) {
		t.Error("column 2 should not be all numeric")
	}
}
