package rut

import (
	"errors"
	"testing"
)

func TestValidateAccepts(t *testing.T) {
	for _, raw := range []string{
		"12.345.678-5",
		"12345678-5",
		"123456785",
		"12345670-K",
		"12345670-k",
		"7.654.321-6",
	} {
		if err := Validate(raw); err != nil {
			t.Fatalf("Validate(%q) = %v, want nil", raw, err)
		}
	}
}

func TestValidateChecksum(t *testing.T) {
	if err := Validate("12.345.678-4"); !errors.Is(err, ErrChecksum) {
		t.Fatalf("flipped check digit: got %v, want ErrChecksum", err)
	}
	if err := Validate("12345670-9"); !errors.Is(err, ErrChecksum) {
		t.Fatalf("wrong check where K expected: got %v, want ErrChecksum", err)
	}
}

func TestValidateMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"1234567",    // too short after stripping
		"1234567890", // too long
		"--..",
		"12345K78-5", // K inside the body
	} {
		if err := Validate(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Validate(%q) = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestCheckDigit(t *testing.T) {
	cases := []struct {
		body string
		want byte
	}{
		{"12345678", '5'},
		{"12345670", 'K'},
		{"7654321", '6'},
		{"11111111", '1'},
	}
	for _, c := range cases {
		got, ok := CheckDigit(c.body)
		if !ok || got != c.want {
			t.Fatalf("CheckDigit(%q) = %c %v, want %c", c.body, got, ok, c.want)
		}
	}
	if _, ok := CheckDigit(""); ok {
		t.Fatal("CheckDigit of empty body should fail")
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"123456785", "12.345.678-5"},
		{"12345678-5", "12.345.678-5"},
		{"7654321-6", "7.654.321-6"},
		{"", ""},
		{"1", "1"},
		{"1234", "123-4"}, // partial input while typing
	}
	for _, c := range cases {
		if got := Format(c.in); got != c.want {
			t.Fatalf("Format(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatIdempotent(t *testing.T) {
	once := Format("123456785")
	if twice := Format(once); twice != once {
		t.Fatalf("Format not idempotent: %q then %q", once, twice)
	}
}
