package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type signup struct {
	Email    string `validate:"required,email"`
	UserName string `validate:"required"`
	Age      int    `validate:"gte=18"`
}

func TestFrom_Mapping(t *testing.T) {
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}

	orig := NotFound("x")
	if got := From(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Fatalf("wrapped *Error should pass through")
	}

	var v any
	syntaxErr := json.Unmarshal([]byte("{"), &v)
	if got := From(syntaxErr); got.Kind() != KindJSON {
		t.Fatalf("json error -> %v", got.Kind())
	}
	var n struct{ N int }
	typeErr := json.Unmarshal([]byte(`{"N":"x"}`), &n)
	if got := From(typeErr); got.Kind() != KindJSON {
		t.Fatalf("json type error -> %v", got.Kind())
	}
	if got := From(io.EOF); got.Kind() != KindJSON || !errors.Is(got, io.EOF) {
		t.Fatalf("EOF -> %v", got.Kind())
	}

	nf := From(gorm.ErrRecordNotFound)
	if nf.Kind() != KindNotFound || nf.StatusCode() != 404 || !errors.Is(nf, gorm.ErrRecordNotFound) {
		t.Fatalf("record not found -> %v", nf.Kind())
	}

	plain := errors.New("kaboom")
	sys := From(plain)
	if sys.Kind() != KindSystem || sys.Message() != "kaboom" || !errors.Is(sys, plain) {
		t.Fatalf("plain error -> %v %q", sys.Kind(), sys.Message())
	}
}

func TestFrom_ValidatorErrors(t *testing.T) {
	err := validator.New().Struct(signup{Email: "nope", Age: 3})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	got := From(err)
	if got.Kind() != KindValidate {
		t.Fatalf("kind = %v", got.Kind())
	}
	want := Errors{
		"email":     {"must be a valid email"},
		"user_name": {"required"},
		"age":       {"must be at least 18"},
	}
	if !reflect.DeepEqual(got.UserErrors(), want) {
		t.Fatalf("validate view = %v; want %v", got.UserErrors(), want)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Field":      "field",
		"UserID":     "user_id",
		"createdAt":  "created_at",
		"HTTPServer": "http_server",
		"already_ok": "already_ok",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q; want %q", in, got, want)
		}
	}
	if strings.Contains(snakeCase("A"), "_") {
		t.Fatalf("single letter must not get a separator")
	}
}
