//go:build ruleguard

// Package gorules holds the project's ruleguard checks, run through
// golangci-lint's gocritic ruleguard integration.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done goroutine pattern.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern").
		Suggest("$wg.Go(func() { $body })")
}

// StoreWritesThroughService keeps every ReplaceAll inside the notification
// package, where the service lock serializes read-modify-write cycles and
// every write is followed by a change signal.
func StoreWritesThroughService(m dsl.Matcher) {
	m.Match(`$s.ReplaceAll($ctx, $list)`).
		Where(m["s"].Type.Implements("github.com/aerodesk/aerodesk/internal/notification.Store") &&
			!m.File().PkgPath.Matches(`/internal/(notification|datastore)$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("write notifications through notification.Service so subscribers see the change")
}

// PrintInLibraryCode flags fmt printing outside the CLI; use the module logger.
func PrintInLibraryCode(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Print($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("use logger.Global().Module(...) instead of printing to stdout")
}
