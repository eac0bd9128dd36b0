//go:build ignore

// Package main generates a synthetic Maildir for indexing and search benchmarks.
// Usage: go run scripts/generate-test-maildir.go -messages 5000 -output testdata/Maildir
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numMessages = flag.Int("messages", 1000, "Number of messages to generate")
	outputDir   = flag.String("output", "testdata/Maildir", "Maildir root to create")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
	archiveRate = flag.Float64("archive", 0.3, "Fraction of messages filed under .Archive")
)

var senders = []struct{ name, email string }{
	{"Billing", "billing@acme.example"},
	{"Alice Martin", "alice@partner.example"},
	{"Team Calendar", "calendar@corp.example"},
	{"GitHub", "noreply@github.example"},
	{"Jörg Müller", "joerg@kunde.example"},
	{"HR", "hr@corp.example"},
	{"", "alerts@monitoring.example"},
}

var subjects = []string{
	"Invoice #%d",
	"Re: Quarterly report %d",
	"Team lunch on Friday (%d)",
	"[ops] Disk usage above %d%%",
	"Your order %d has shipped",
	"Fwd: Contract draft v%d",
	"Meeting notes %d",
	"Rechnung Nr. %d",
}

var paragraphs = []string{
	"Please find the attached invoice for last month's services. Payment is due within 30 days.",
	"Following up on our call, here are the numbers for the quarter. Revenue grew while costs stayed flat.",
	"We are meeting at the usual place at noon. Let me know about dietary restrictions.",
	"The monitoring system detected sustained high disk usage on the primary database host.",
	"Your package is on its way and should arrive within three business days.",
	"Attached is the revised contract. Changes are highlighted in section four.",
	"Action items: update the roadmap, schedule the design review, send the budget to finance.",
	"Vielen Dank für Ihren Auftrag. Die Rechnung finden Sie im Anhang.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for _, folder := range []string{"", ".Archive"} {
		for _, sub := range []string{"cur", "new", "tmp"} {
			if err := os.MkdirAll(filepath.Join(*outputDir, folder, sub), 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating maildir: %v\n", err)
				os.Exit(1)
			}
		}
	}

	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < *numMessages; i++ {
		sender := senders[rng.Intn(len(senders))]
		subject := fmt.Sprintf(subjects[rng.Intn(len(subjects))], 100+rng.Intn(900))
		date := start.Add(time.Duration(rng.Intn(365*24)) * time.Hour)

		var body strings.Builder
		for p := 0; p < 1+rng.Intn(4); p++ {
			body.WriteString(paragraphs[rng.Intn(len(paragraphs))])
			body.WriteString("\r\n\r\n")
		}

		from := sender.email
		if sender.name != "" {
			from = fmt.Sprintf("%q <%s>", sender.name, sender.email)
		}
		msg := fmt.Sprintf("Message-ID: <bench-%d@mailsearch.example>\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Date: %s\r\n"+
			"Content-Type: text/plain; charset=utf-8\r\n"+
			"\r\n%s", i, from, subject, date.Format(time.RFC1123Z), body.String())

		folder := ""
		if rng.Float64() < *archiveRate {
			folder = ".Archive"
		}
		sub, flags := "cur", ":2,S"
		switch r := rng.Float64(); {
		case r < 0.15:
			sub, flags = "new", ""
		case r < 0.35:
			flags = ":2,"
		}
		name := fmt.Sprintf("%d.M%dP1.bench%s", date.Unix(), i, flags)

		path := filepath.Join(*outputDir, folder, sub, name)
		if err := os.WriteFile(path, []byte(msg), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d messages in %s\n", *numMessages, *outputDir)
}
