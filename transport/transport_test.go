package transport

import (
	"context"
	"testing"

	"github.com/marketfeed/kstream/apperror"
)

func TestParseURLAcceptsWSAndWSS(t *testing.T) {
	for _, u := range []string{"ws://example.com/socket", "wss://example.com:443/v2"} {
		if _, err := parseURL(u); err != nil {
			t.Fatalf("unexpected error for %s: %v", u, err)
		}
	}
}

func TestParseURLRejectsOtherSchemes(t *testing.T) {
	if _, err := parseURL("http://example.com"); err == nil {
		t.Fatal("expected error for non-ws scheme")
	}
}

func TestParseURLRejectsMissingHost(t *testing.T) {
	if _, err := parseURL("wss:///path"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestBuildTLSConfigDefaultsVerifyOn(t *testing.T) {
	tc, err := buildTLSConfig(TLSConfig{VerifyPeer: true}, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if tc.InsecureSkipVerify {
		t.Fatal("expected peer verification on by default")
	}
	if tc.ServerName != "example.com" {
		t.Fatalf("expected SNI set to host, got %q", tc.ServerName)
	}
}

func TestBuildTLSConfigAllowInsecure(t *testing.T) {
	tc, err := buildTLSConfig(TLSConfig{AllowInsecure: true}, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !tc.InsecureSkipVerify {
		t.Fatal("expected AllowInsecure to disable verification")
	}
}

func TestSendOnUnopenedConnReturnsConnectionClosed(t *testing.T) {
	c := New(Config{URL: "wss://example.com"})
	err := c.Send(context.Background(), []byte("hi"))
	ae, ok := err.(*apperror.Error)
	if !ok || ae.Kind != apperror.ConnectionClosed {
		t.Fatalf("expected ConnectionClosed, got %v", err)
	}
}

func TestReceiveOnUnopenedConnReturnsConnectionClosed(t *testing.T) {
	c := New(Config{URL: "wss://example.com"})
	_, err := c.Receive(context.Background())
	ae, ok := err.(*apperror.Error)
	if !ok || ae.Kind != apperror.ConnectionClosed {
		t.Fatalf("expected ConnectionClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Config{URL: "wss://example.com"})
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	c := New(Config{URL: "not-a-url"})
	err := c.Open(context.Background())
	ae, ok := err.(*apperror.Error)
	if !ok || ae.Kind != apperror.ConnectionFailed {
		t.Fatalf("expected ConnectionFailed, got %v", err)
	}
}
