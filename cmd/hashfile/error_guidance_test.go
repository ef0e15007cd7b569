package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"hashfile/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a hashfile server is running at HASHFILE_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start a local server with: hashfile srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify HASHFILE_API_URL points to a hashfile server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIAuthGuidance(t *testing.T) {
	err := &api.APIError{Status: 401, Code: "unauthorized", Message: "invalid or expired token"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: run hashfile login and export HASHFILE_TOKEN with the returned token.") {
		t.Fatalf("expected auth guidance, got %v", lines)
	}
}

func TestFormatCLIError_DenialGuidance(t *testing.T) {
	err := fmt.Errorf("download: %w", &api.APIError{Status: 404, Code: "not_found", Message: "file not found or access denied"})
	lines := formatCLIError(err)
	if lines[0] != "download: not_found: file not found or access denied" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !containsLine(lines, "hint: only files you uploaded are visible; check the hash with hashfile ls.") {
		t.Fatalf("expected denial guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for details.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_Timeout(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("upload: %w", context.DeadlineExceeded))
	if !containsLine(lines, "hint: request timed out; check server health or increase HASHFILE_HTTP_TIMEOUT.") {
		t.Fatalf("expected timeout guidance, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
