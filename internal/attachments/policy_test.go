package attachments

import (
	"strings"
	"testing"

	"moneytracker/internal/core"
)

func TestPolicyValidate(t *testing.T) {
	p := NewPolicy(0)
	if p.MaxBytes != 5<<20 {
		t.Fatalf("expected default 5 MiB, got %d", p.MaxBytes)
	}

	cases := []struct {
		name, file, contentType string
		size                    int64
		ok                      bool
	}{
		{"jpeg", "receipt.jpeg", "image/jpeg", 100, true},
		{"jpg", "receipt.JPG", "image/jpeg", 100, true},
		{"jpg alias", "receipt.jpg", "image/jpg", 100, true},
		{"png with params", "r.png", "image/png; charset=binary", 100, true},
		{"gif", "r.gif", "image/gif", 100, true},
		{"pdf", "invoice.pdf", "application/pdf", 100, true},
		{"exactly max", "r.pdf", "application/pdf", 5 << 20, true},
		{"too large", "r.pdf", "application/pdf", 5<<20 + 1, false},
		{"empty", "r.pdf", "application/pdf", 0, false},
		{"exe renamed png", "virus.png", "application/x-msdownload", 100, false},
		{"exe", "virus.exe", "application/octet-stream", 100, false},
		{"mismatched image types", "photo.png", "image/jpeg", 100, false},
		{"no extension", "receipt", "image/png", 100, false},
		{"missing content type", "r.png", "", 100, false},
		{"svg", "r.svg", "image/svg+xml", 100, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.file, tc.size, tc.contentType)
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !core.IsValidation(err) {
					t.Fatalf("expected validation error, got %T %v", err, err)
				}
			}
		})
	}
}

func TestPolicySizeMessageIsHumanReadable(t *testing.T) {
	err := NewPolicy(5<<20).Validate("r.png", 6<<20, "image/png")
	if err == nil || !strings.Contains(err.Error(), "5.0 MiB") {
		t.Fatalf("expected humanized limit in %v", err)
	}
}

func TestPolicyCheckUpload(t *testing.T) {
	p := NewPolicy(10)
	if err := p.Check(nil); err != nil {
		t.Fatalf("nil upload should pass, got %v", err)
	}
	if err := p.Check(&core.Upload{Filename: "a.png", ContentType: "image/png", Data: []byte("12345")}); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := p.Check(&core.Upload{Filename: "a.png", ContentType: "image/png", Data: make([]byte, 11)}); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		owner, tx, name, want string
	}{
		{"u1", "t1", "scan.PNG", "transactions/dTE/t1/receipt.png"},
		{"user@example.com", "abc", "x.pdf", "transactions/dXNlckBleGFtcGxlLmNvbQ/abc/receipt.pdf"},
		{"../etc", "..", "a.jpg", "transactions/Li4vZXRj/_/receipt.jpg"},
		{"u1", "t1", "noext", "transactions/dTE/t1/receipt"},
		{"u1", "t1", "evil.sh", "transactions/dTE/t1/receipt"},
		{"", "t1", "a.png", "transactions/_/t1/receipt.png"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.owner, tc.tx, tc.name); got != tc.want {
			t.Errorf("ObjectKey(%q,%q,%q) = %q, want %q", tc.owner, tc.tx, tc.name, got, tc.want)
		}
		if !validKey(ObjectKey(tc.owner, tc.tx, tc.name)) {
			t.Errorf("generated key for %q must be valid", tc.owner)
		}
	}
}

func TestOwnerPrefixIsolation(t *testing.T) {
	owners := []string{"a b", "a_b", "a/b", "a.b", "ab", "a", "_"}
	seen := map[string]string{}
	for _, o := range owners {
		p := OwnerPrefix(o)
		if prev, ok := seen[p]; ok {
			t.Fatalf("owners %q and %q share prefix %q", prev, o, p)
		}
		seen[p] = o
		for _, other := range owners {
			if other != o && strings.HasPrefix(ObjectKey(other, "t1", "a.png"), p) {
				t.Errorf("key of %q falls under prefix of %q", other, o)
			}
		}
	}
}

func TestValidKey(t *testing.T) {
	for _, k := range []string{"", "/abs", "a/../b", "a//b", "a\\b", "./a"} {
		if validKey(k) {
			t.Errorf("%q should be rejected", k)
		}
	}
	if !validKey("transactions/u/t/receipt.png") {
		t.Errorf("normal key rejected")
	}
}
