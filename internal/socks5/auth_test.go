package socks5

import (
	"strings"
	"testing"
)

func TestParseCredentials(t *testing.T) {
	t.Parallel()

	in := `# users
alice:wonder:land

bob:secret
`
	creds, err := ParseCredentials(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 2 {
		t.Fatalf("got %d entries", len(creds))
	}
	if !creds.CheckCredentials("alice", "wonder:land") {
		t.Fatal("alice rejected")
	}
	if !creds.CheckCredentials("bob", "secret") {
		t.Fatal("bob rejected")
	}
	if creds.CheckCredentials("bob", "Secret") {
		t.Fatal("wrong password accepted")
	}
	if creds.CheckCredentials("carol", "") {
		t.Fatal("unknown user accepted")
	}
}

func TestParseCredentialsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "missing colon", in: "ok:1\nbroken\n", want: "line 2"},
		{name: "empty user", in: ":pass\n", want: "line 1"},
		{name: "long user", in: strings.Repeat("u", 256) + ":p\n", want: "255 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCredentials(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestCredentialCheckerFunc(t *testing.T) {
	t.Parallel()

	var c CredentialChecker = CredentialCheckerFunc(func(u, p string) bool { return u == p })
	if !c.CheckCredentials("x", "x") || c.CheckCredentials("x", "y") {
		t.Fatal("func adapter did not delegate")
	}
}
