package core_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/shieldscan/shieldscan/pkg/core"
)

// ExampleScan runs a scan against an engine and prints the free findings.
func ExampleScan() {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"url":"https://example.com","score":90,"grade":"A","issues":[{"title":"Missing HSTS","difficulty":"Easy","score_impact":10}]}`)
	}))
	defer engine.Close()

	rep, err := core.Scan(context.Background(), "example.com", true, core.Options{APIURL: engine.URL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return
	}
	fmt.Printf("%s scored %d (%s)\n", rep.URL, rep.Score, rep.Grade)
	for _, f := range rep.Findings {
		fmt.Printf("- %s [%s]\n", f.Issue.Title, f.Issue.Difficulty)
	}
	// Output:
	// https://example.com scored 90 (A)
	// - Missing HSTS [Easy]
}

// ExampleGate shows which findings stay hidden until the report is unlocked.
func ExampleGate() {
	r := core.Result{URL: "https://example.com", Score: 40, Grade: "D"}
	for i := 0; i < 5; i++ {
		r.Issues = append(r.Issues, core.Issue{Title: fmt.Sprintf("issue %d", i+1), Difficulty: "Easy"})
	}

	rep := core.Gate(r, false)
	fmt.Printf("%d of %d locked\n", rep.Locked, rep.Total)
	for _, f := range rep.Findings {
		fmt.Println(f.Issue.Title)
	}
	// Output:
	// 2 of 5 locked
	// issue 1
	// issue 2
	// issue 3
	// Premium finding locked
	// Premium finding locked
}
