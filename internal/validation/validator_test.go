package validation

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestNewValidator_CompilesAllSchemas(t *testing.T) {
	v := newTestValidator(t)
	for _, name := range []string{
		SchemaRegister, SchemaLogin, SchemaDeposit, SchemaCreateJob, SchemaApply,
		SchemaSelect, SchemaSubmit, SchemaVerify, SchemaUpload,
	} {
		if !v.Has(name) {
			t.Errorf("schema %q not compiled", name)
		}
	}
}

func TestValidate_Valid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		schema string
		body   string
	}{
		{SchemaRegister, `{"email":"a@b.co","password":"hunter22!","display_name":"A","role":"verifier"}`},
		{SchemaDeposit, `{"amount_cents":100000}`},
		{SchemaCreateJob, `{"title":"Logo","description":"A new logo","budget_cents":50000,"required_skills":["Design"],"deadline":"2030-01-01T00:00:00Z"}`},
		{SchemaCreateJob, `{"title":"Logo","description":"A new logo","budget_cents":50000,"deadline":null}`},
		{SchemaApply, `{"price_cents":50000,"proposal":"I can do it"}`},
		{SchemaSelect, `{"freelancer_id":"6f1c2f8e-8f3a-4c1e-9d55-0d6a3c1f2b7a","verifier_ids":["0b8f8a8e-1f2d-4c3b-8a9e-7d6c5b4a3f21"]}`},
		{SchemaSubmit, `{"text":"done","images":["jobs/1/a.png"]}`},
		{SchemaVerify, `{"approved":false}`},
		{SchemaUpload, `{"content_type":"image/png"}`},
	}
	for _, tc := range cases {
		if err := v.Validate(tc.schema, []byte(tc.body)); err != nil {
			t.Errorf("%s: expected valid body, got: %v", tc.schema, err)
		}
	}
}

func TestValidate_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name   string
		schema string
		body   string
	}{
		{"not json", SchemaDeposit, `{"amount_cents":`},
		{"zero deposit", SchemaDeposit, `{"amount_cents":0}`},
		{"fractional cents", SchemaDeposit, `{"amount_cents":10.5}`},
		{"negative budget", SchemaCreateJob, `{"title":"t","description":"d","budget_cents":-1}`},
		{"budget over cap", SchemaCreateJob, `{"title":"t","description":"d","budget_cents":1000000000001}`},
		{"price over cap", SchemaApply, `{"price_cents":9223372036854776}`},
		{"missing title", SchemaCreateJob, `{"description":"d","budget_cents":1}`},
		{"unknown field", SchemaApply, `{"price_cents":1,"discount":5}`},
		{"empty verifiers", SchemaSelect, `{"freelancer_id":"6f1c2f8e-8f3a-4c1e-9d55-0d6a3c1f2b7a","verifier_ids":[]}`},
		{"bad uuid", SchemaSelect, `{"freelancer_id":"nope","verifier_ids":["0b8f8a8e-1f2d-4c3b-8a9e-7d6c5b4a3f21"]}`},
		{"approved as string", SchemaVerify, `{"approved":"yes"}`},
		{"unknown role", SchemaRegister, `{"email":"a@b.co","password":"hunter22!","display_name":"A","role":"admin"}`},
		{"unsupported upload type", SchemaUpload, `{"content_type":"application/pdf"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.schema, []byte(tc.body))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	err := v.Validate("nope", []byte(`{}`))
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("expected non-validation error for unknown schema, got: %v", err)
	}
}
