package tool

import (
	"context"
	"errors"
	"testing"
)

func newEchoTool(t *testing.T, name string) Tool {
	t.Helper()
	type echoArgs struct {
		Text string `json:"text"`
	}
	type echoResult struct {
		Text string `json:"text"`
	}
	echo, err := NewFunction[echoArgs, echoResult](name, "echo back", func(_ context.Context, args echoArgs) (echoResult, error) {
		return echoResult{Text: args.Text}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return echo
}

func TestRegistry_GetRegistered(t *testing.T) {
	reg, err := NewRegistry(newEchoTool(t, "cargo_check"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("cargo_check"); err != nil {
		t.Fatalf("expected cargo_check registered: %v", err)
	}
	_, err = reg.Get("barq_search")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Name != "barq_search" {
		t.Fatalf("unexpected name in error: %q", notFound.Name)
	}
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(newEchoTool(t, "shell_exec"), newEchoTool(t, "shell_exec"))
	if err == nil {
		t.Fatal("expected duplicate name rejection")
	}
}

func TestRegistry_DeclarationsInRegistrationOrder(t *testing.T) {
	reg, err := NewRegistry(newEchoTool(t, "read_file"), newEchoTool(t, "edit_file"))
	if err != nil {
		t.Fatal(err)
	}
	decls := reg.Declarations()
	if len(decls) != 2 || decls[0].Name != "read_file" || decls[1].Name != "edit_file" {
		t.Fatalf("unexpected declarations: %+v", decls)
	}
	props, ok := decls[0].Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected object schema, got %+v", decls[0].Parameters)
	}
	if _, ok := props["text"]; !ok {
		t.Fatalf("expected text property, got %+v", props)
	}
}

func TestFunctionTool_RunDecodesArgs(t *testing.T) {
	echo := newEchoTool(t, "echo")
	result, err := echo.Run(context.Background(), map[string]any{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if result["text"] != "hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
