package shell

import "testing"

func TestDecodeInput(t *testing.T) {
	t.Run("command envelope", func(t *testing.T) {
		in := decodeInput([]byte(`{"command": "ls -la"}`))
		if !in.Envelope {
			t.Fatal("expected envelope variant")
		}
		if in.Stdin != "ls -la" {
			t.Fatalf("unexpected stdin: %q", in.Stdin)
		}
	})

	t.Run("raw string passes through", func(t *testing.T) {
		in := decodeInput([]byte("echo hello"))
		if in.Envelope {
			t.Fatal("expected raw variant")
		}
		if in.Stdin != "echo hello" {
			t.Fatalf("unexpected stdin: %q", in.Stdin)
		}
	})

	t.Run("json without command field is raw", func(t *testing.T) {
		raw := `{"other": "x"}`
		in := decodeInput([]byte(raw))
		if in.Envelope {
			t.Fatal("expected raw variant")
		}
		if in.Stdin != raw {
			t.Fatalf("unexpected stdin: %q", in.Stdin)
		}
	})

	t.Run("empty command envelope is raw", func(t *testing.T) {
		raw := `{"command": ""}`
		in := decodeInput([]byte(raw))
		if in.Envelope {
			t.Fatal("expected raw variant")
		}
	})
}
