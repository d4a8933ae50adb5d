package passphrase

import (
	"strings"
	"testing"
)

type fakeTerminal struct {
	secret  string
	present bool
	prompts []string
}

func (f *fakeTerminal) ReadSecret(prompt string) ([]byte, bool, error) {
	f.prompts = append(f.prompts, prompt)
	if !f.present {
		return nil, false, nil
	}
	return []byte(f.secret), true, nil
}

func newTestSource(env map[string]string, tty *fakeTerminal) *Source {
	src := NewSource("PAYLINK_TEST_PASSPHRASE", "wallet passphrase")
	src.lookup = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	src.tty = tty
	return src
}

func TestSourcePrefersEnvironment(t *testing.T) {
	tty := &fakeTerminal{secret: "typed", present: true}
	src := newTestSource(map[string]string{"PAYLINK_TEST_PASSPHRASE": "correct horse"}, tty)

	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "correct horse" {
		t.Fatalf("expected environment value, got %q", got)
	}
	if len(tty.prompts) != 0 {
		t.Fatalf("terminal should not be prompted: %v", tty.prompts)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	src := newTestSource(map[string]string{"PAYLINK_TEST_PASSPHRASE": "   "}, &fakeTerminal{})
	_, err := src.Get()
	if err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
	if !strings.Contains(err.Error(), "PAYLINK_TEST_PASSPHRASE") {
		t.Fatalf("error should name the variable: %v", err)
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	tty := &fakeTerminal{secret: "typed secret", present: true}
	src := newTestSource(nil, tty)

	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got != "typed secret" {
			t.Fatalf("get %d: got %q", i, got)
		}
	}
	if len(tty.prompts) != 1 || tty.prompts[0] != "Enter wallet passphrase: " {
		t.Fatalf("expected one prompt, got %v", tty.prompts)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	_, err := newTestSource(nil, &fakeTerminal{}).Get()
	if err == nil || !strings.Contains(err.Error(), "set PAYLINK_TEST_PASSPHRASE or run interactively") {
		t.Fatalf("unexpected error without terminal: %v", err)
	}

	_, err = newTestSource(nil, &fakeTerminal{secret: " ", present: true}).Get()
	if err == nil || !strings.Contains(err.Error(), "wallet passphrase cannot be empty") {
		t.Fatalf("unexpected error for blank input: %v", err)
	}
}
