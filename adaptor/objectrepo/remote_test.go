package objectrepo

import "testing"

// TestParseOriginDispatchesByScheme verifies each supported scheme resolves
// to its matching backend type, and an unknown scheme is rejected.
func TestParseOriginDispatchesByScheme(t *testing.T) {
	cases := []struct {
		origin  string
		wantErr bool
	}{
		{"https://example.com/bundles", false},
		{"file:///var/lib/xdg-app/repo", false},
		{"ftp://example.com/x", true},
	}

	for _, tc := range cases {
		remote, err := ParseOrigin(tc.origin, RemoteDeps{})
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseOrigin(%q): expected error", tc.origin)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOrigin(%q): unexpected error %v", tc.origin, err)
			continue
		}
		if remote == nil {
			t.Errorf("ParseOrigin(%q): returned nil remote", tc.origin)
		}
	}
}

// TestParseOriginS3WithoutClientFails verifies that an s3:// origin is
// rejected when no S3 client was wired, rather than panicking later on
// first use.
func TestParseOriginS3WithoutClientFails(t *testing.T) {
	_, err := ParseOrigin("s3://my-bucket/prefix", RemoteDeps{})
	if err == nil {
		t.Fatal("expected error for s3 origin with no client configured")
	}
}
