package lang

import "testing"

func TestFileExtension(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"python", "py"},
		{"typescript", "ts"},
		{"markdown", "md"},
		{"plaintext", "txt"},
		{"brainfuck", "txt"},
		{"", "txt"},
	}
	for _, tc := range cases {
		if got := FileExtension(tc.id); got != tc.want {
			t.Errorf("FileExtension(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Python "); got != "python" {
		t.Fatalf("got %q", got)
	}
	if got := Normalize(""); got != Default {
		t.Fatalf("expected default, got %q", got)
	}
	if got := Normalize("cobol"); got != "cobol" {
		t.Fatalf("unknown tags must be preserved, got %q", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Label("cpp"); got != "C++" {
		t.Fatalf("got %q", got)
	}
	if got := Label("cobol"); got != "Cobol" {
		t.Fatalf("got %q", got)
	}
	if got := Label(""); got != "Plain Text" {
		t.Fatalf("got %q", got)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].ID = "changed"
	if !Known("plaintext") || All()[0].ID != "plaintext" {
		t.Fatalf("catalogue mutated through All")
	}
}

func TestLabelMultiByteTag(t *testing.T) {
	if got := Label("élixir"); got != "Élixir" {
		t.Fatalf("got %q", got)
	}
	if got := Label("ñ"); got != "Ñ" {
		t.Fatalf("got %q", got)
	}
}
