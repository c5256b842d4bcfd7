package pgpool

import (
	"reflect"
	"testing"
)

func TestRewriteNamedParameters_MultipleTokensShareIndex(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	text := "select foo from foobar where id=@id and (bar=@foobar or bar=@foo) and foo=@foo"
	values := map[string]any{
		"id":     "lorem",
		"foo":    "lorem - foo",
		"foobar": "lorem - foobar",
		"unused": "lorem - unused",
	}

	gotText, gotArgs, err := rewriteNamed(opts, text, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantText := "select foo from foobar where id=$1 and (bar=$2 or bar=$3) and foo=$3"
	if gotText != wantText {
		t.Fatalf("text=%q, want %q", gotText, wantText)
	}

	wantArgs := []any{"lorem", "lorem - foobar", "lorem - foo"}
	if !reflect.DeepEqual(gotArgs, wantArgs) {
		t.Fatalf("args=%v, want %v", gotArgs, wantArgs)
	}
}

func TestRewriteNamedParameters_RepeatedTokenSameIndex(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	gotText, gotArgs, err := rewriteNamed(opts, "a=@x and b=@y or c=@x", map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != "a=$1 and b=$2 or c=$1" {
		t.Fatalf("text=%q", gotText)
	}
	if !reflect.DeepEqual(gotArgs, []any{1, 2}) {
		t.Fatalf("args=%v", gotArgs)
	}
}

func TestRewriteNamedParameters_MissingParameter(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	_, _, err := rewriteNamed(opts, "select * from foobar where id=@id", map[string]any{"unused": "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var pe *PoolError
	if pe2, ok := err.(*PoolError); ok {
		pe = pe2
	} else {
		t.Fatalf("expected *PoolError, got %T", err)
	}
	if pe.Code != ErrCodeQueryMissingParam {
		t.Fatalf("code=%s, want %s", pe.Code, ErrCodeQueryMissingParam)
	}
	if pe.Error() != "Missing query parameter(s): id" {
		t.Fatalf("message=%q", pe.Error())
	}
}

func TestRewriteNamedParameters_NoTokensFound(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	_, _, err := rewriteNamed(opts, "select 1", map[string]any{"x": 1})
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*PoolError)
	if !ok {
		t.Fatalf("expected *PoolError, got %T", err)
	}
	if pe.Code != ErrCodeQueryNoNamedParams {
		t.Fatalf("code=%s, want %s", pe.Code, ErrCodeQueryNoNamedParams)
	}
}

func TestRewriteNamedParameters_EmptyMapPassesThrough(t *testing.T) {
	t.Parallel()

	p := New(Options{Dial: SequenceDial()})
	text, args, err := p.rewriteNamedParameters("select 1", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "select 1" || args != nil {
		t.Fatalf("text=%q args=%v", text, args)
	}
}

func TestRewriteNamedParameters_PositionalPassesThrough(t *testing.T) {
	t.Parallel()

	p := New(Options{Dial: SequenceDial()})
	text, args, err := p.rewriteNamedParameters("select $1", []any{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "select $1" || !reflect.DeepEqual(args, []any{1}) {
		t.Fatalf("text=%q args=%v", text, args)
	}
}

func TestRewriteNamedParameters_NilPassesThrough(t *testing.T) {
	t.Parallel()

	p := New(Options{Dial: SequenceDial()})
	text, args, err := p.rewriteNamedParameters("select 1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "select 1" || args != nil {
		t.Fatalf("text=%q args=%v", text, args)
	}
}
