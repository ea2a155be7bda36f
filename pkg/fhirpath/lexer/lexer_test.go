package lexer

import "testing"

func kinds(toks []Token) []Kind {
	ks := make([]Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func equalKinds(t *testing.T, src string, want ...Kind) []Token {
	t.Helper()
	toks, err := All(src)
	if err != nil {
		t.Fatalf("All(%q): unexpected error: %v", src, err)
	}
	got := kinds(toks)
	want = append(want, EOF)
	if len(got) != len(want) {
		t.Fatalf("All(%q): got %v, want %v", src, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("All(%q): token %d: got %s, want %s", src, i, got[i], want[i])
		}
	}
	return toks
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks := equalKinds(t, "Patient.name", Ident, Dot, Ident)
	if toks[0].Text != "Patient" || toks[2].Text != "name" {
		t.Errorf("unexpected text: %+v", toks)
	}

	// Reserved words are tagged as Ident; the parser decides identifier-vs-operator.
	equalKinds(t, "where", Ident)
	if !IsReservedWord("where") {
		t.Error("expected where to be a reserved word")
	}
	if IsReservedWord("Patient") {
		t.Error("did not expect Patient to be a reserved word")
	}
}

func TestDelimitedIdentifier(t *testing.T) {
	toks := equalKinds(t, "`a weird name`", Delimited)
	if toks[0].Decoded != "a weird name" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, "``", Delimited)
	if toks[0].Decoded != "" {
		t.Errorf("expected empty delimited identifier, got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, "`a\\`b`", Delimited)
	if toks[0].Decoded != "a`b" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	if _, err := All("`unterminated"); err == nil {
		t.Error("expected error for unterminated delimited identifier")
	}
}

func TestStringLiteral(t *testing.T) {
	toks := equalKinds(t, `'hello world'`, String)
	if toks[0].Decoded != "hello world" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, `'line\nbreak'`, String)
	if toks[0].Decoded != "line\nbreak" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, `'\u{1F600}'`, String)
	if toks[0].Decoded != "\U0001F600" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	if _, err := All("'unterminated"); err == nil {
		t.Error("expected error for unterminated string")
	}
	if _, err := All(`'bad\escape'`); err == nil {
		t.Error("expected error for invalid escape")
	}
	if _, err := All("'embedded\nnewline'"); err == nil {
		t.Error("expected error for raw newline inside a string")
	}
}

func TestNumbersAndQuantities(t *testing.T) {
	toks := equalKinds(t, "42", Number)
	if toks[0].Text != "42" {
		t.Errorf("got %q", toks[0].Text)
	}

	toks = equalKinds(t, "1.50", Number)
	if toks[0].Text != "1.50" {
		t.Errorf("got %q", toks[0].Text)
	}

	toks = equalKinds(t, "1.5e10", Number)
	if toks[0].Text != "1.5e10" {
		t.Errorf("got %q", toks[0].Text)
	}

	toks = equalKinds(t, "4 days", Quantity)
	if toks[0].Decoded != "4 days" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, "10 'mg'", Quantity)
	if toks[0].Decoded != "10 'mg'" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	// A number not followed by a recognized unit word stays a plain Number,
	// and the following identifier lexes as its own token.
	equalKinds(t, "5 foo", Number, Ident)
}

func TestDateTimeLiterals(t *testing.T) {
	cases := []struct {
		src  string
		kind Kind
	}{
		{"@2020", Date},
		{"@2020-01", Date},
		{"@2020-01-01", Date},
		{"@2020-01-01T14:30:00Z", DateTime},
		{"@2020-01-01T14:30:00+01:00", DateTime},
		{"@2020-01-01T", DateTime},
		{"@T14:30", Time},
		{"@T14:30:00.500", Time},
	}
	for _, tc := range cases {
		equalKinds(t, tc.src, tc.kind)
	}

	if _, err := All("@"); err == nil {
		t.Error("expected error for bare @")
	}
	if _, err := All("@T"); err == nil {
		t.Error("expected error for @T with no time body")
	}
}

func TestVariablesAndEnvVars(t *testing.T) {
	toks := equalKinds(t, "$this", Variable)
	if toks[0].Decoded != "this" {
		t.Errorf("got %q", toks[0].Decoded)
	}
	toks = equalKinds(t, "$myVar", Variable)
	if toks[0].Decoded != "myVar" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	toks = equalKinds(t, "%resource", EnvVar)
	if toks[0].Decoded != "resource" {
		t.Errorf("got %q", toks[0].Decoded)
	}
	toks = equalKinds(t, "%'us-core'", EnvVar)
	if toks[0].Decoded != "us-core" {
		t.Errorf("got %q", toks[0].Decoded)
	}

	if _, err := All("%"); err == nil {
		t.Error("expected error for bare %")
	}
}

func TestOperators(t *testing.T) {
	equalKinds(t, "<= >= != !~ ~ -> | &",
		Lte, Gte, Neq, NEquiv, Equiv, Arrow, Pipe, Amp)
	equalKinds(t, "a < b > c", Ident, Lt, Ident, Gt, Ident)

	if _, err := All("!"); err == nil {
		t.Error("expected error for bare '!'")
	}
	if _, err := All("^"); err == nil {
		t.Error("expected error for stray character")
	}
}

func TestWhitespaceAndComments(t *testing.T) {
	toks := equalKinds(t, "a . b // trailing comment\n.c", Ident, Dot, Ident, Dot, Ident)
	if toks[4].Text != "c" {
		t.Errorf("got %+v", toks)
	}
}

func TestSpansAdvancePastTrivia(t *testing.T) {
	toks, err := All("  foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Start != 2 || toks[0].End != 5 {
		t.Errorf("expected span [2,5), got [%d,%d)", toks[0].Start, toks[0].End)
	}
}

func TestErrorSpanReporting(t *testing.T) {
	_, err := All("'abc")
	if err == nil {
		t.Fatal("expected error")
	}
	le, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *lexer.Error, got %T", err)
	}
	start, end := le.Span()
	if start != 0 || end != 4 {
		t.Errorf("expected span [0,4), got [%d,%d)", start, end)
	}
}
