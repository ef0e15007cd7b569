package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"hashfile/internal/api"
	"hashfile/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFileList(files []api.FileResponse) error {
	if len(files) == 0 {
		return writePlain("no files\n")
	}
	for _, file := range files {
		if err := writePlain("%s\n", formatFileLine(file, time.Now())); err != nil {
			return err
		}
	}
	return nil
}

func formatFileLine(file api.FileResponse, now time.Time) string {
	return fmt.Sprintf("%s  %8s  %s (%s)",
		file.Hash,
		humanize.Bytes(uint64(max(file.SizeBytes, 0))),
		formatTime(file.UploadedAt),
		humanize.RelTime(file.UploadedAt, now, "ago", "from now"),
	)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
