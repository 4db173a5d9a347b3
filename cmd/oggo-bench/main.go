// Command oggo-bench drives a handful of concurrency scenarios against a
// real openGauss/PostgreSQL endpoint through database/sql and the oggo
// driver: it takes a connection string for an already-running server and
// exercises the pool under concurrent readers and writers.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "oggo"
)

func main() {
	fmt.Println("oggo concurrency bench")
	fmt.Println("======================")

	dsn := os.Getenv("OGGO_BENCH_DSN")
	if dsn == "" {
		fatalf("set OGGO_BENCH_DSN to a connection string, e.g. " +
			"\"host=127.0.0.1 port=5432 username=postgres database=postgres sslmode=disable\"")
	}

	db, err := sql.Open("oggo", dsn)
	if err != nil {
		fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fatalf("ping %s: %v", dsn, err)
	}

	passed, failed := 0, 0
	for _, sc := range []struct {
		name string
		fn   func(*sql.DB) bool
	}{
		{"Setup", scenarioSetup},
		{"Concurrent reads", scenarioConcurrentReads},
		{"Reads during writes", scenarioReadsDuringWrites},
		{"Concurrent writes", scenarioConcurrentWrites},
	} {
		if sc.fn(db) {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func scenarioSetup(db *sql.DB) bool {
	start := time.Now()
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS oggo_bench"); err != nil {
		return fail("Setup", "DROP TABLE: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE oggo_bench (id INTEGER PRIMARY KEY, val TEXT)"); err != nil {
		return fail("Setup", "CREATE TABLE: %v", err)
	}

	for i := 1; i <= 100; i++ {
		if _, err := db.ExecContext(ctx, "INSERT INTO oggo_bench VALUES ($1, $2)", i, fmt.Sprintf("row%d", i)); err != nil {
			return fail("Setup", "INSERT %d: %v", i, err)
		}
	}

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM oggo_bench").Scan(&count); err != nil {
		return fail("Setup", "COUNT: %v", err)
	}
	if count != 100 {
		return fail("Setup", "expected 100 rows, got %d", count)
	}

	return pass("Setup", "created table, inserted 100 rows", time.Since(start))
}

func scenarioConcurrentReads(db *sql.DB) bool {
	start := time.Now()
	const goroutines = 10
	const queriesPerGoroutine = 50

	var wg sync.WaitGroup
	var errCount atomic.Int64

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			for q := 0; q < queriesPerGoroutine; q++ {
				rows, err := db.QueryContext(ctx, "SELECT * FROM oggo_bench")
				if err != nil {
					errCount.Add(1)
					continue
				}
				n := 0
				for rows.Next() {
					n++
				}
				rows.Close()
				if rows.Err() != nil || n != 100 {
					errCount.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	errs := errCount.Load()
	total := goroutines * queriesPerGoroutine
	if errs > 0 {
		return fail("Concurrent reads", "%d errors out of %d queries", errs, total)
	}
	return pass("Concurrent reads",
		fmt.Sprintf("%d goroutines x %d queries = %d total, 0 errors", goroutines, queriesPerGoroutine, total),
		time.Since(start))
}

func scenarioReadsDuringWrites(db *sql.DB) bool {
	start := time.Now()
	const readers = 10

	var wg sync.WaitGroup
	var errCount atomic.Int64
	var minCount, maxCount atomic.Int64
	minCount.Store(999999)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		for i := 101; i <= 200; i++ {
			if _, err := db.ExecContext(ctx, "INSERT INTO oggo_bench VALUES ($1, $2)", i, fmt.Sprintf("row%d", i)); err != nil {
				errCount.Add(1)
			}
		}
	}()

	for g := 0; g < readers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			for q := 0; q < 50; q++ {
				var count int64
				if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM oggo_bench").Scan(&count); err != nil {
					errCount.Add(1)
					continue
				}
				for {
					cur := minCount.Load()
					if count >= cur || minCount.CompareAndSwap(cur, count) {
						break
					}
				}
				for {
					cur := maxCount.Load()
					if count <= cur || maxCount.CompareAndSwap(cur, count) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	errs := errCount.Load()
	lo, hi := minCount.Load(), maxCount.Load()

	if errs > 0 {
		return fail("Reads during writes", "%d errors", errs)
	}
	if lo < 100 || hi > 200 {
		return fail("Reads during writes", "counts out of range: [%d..%d]", lo, hi)
	}

	var finalCount int64
	db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM oggo_bench").Scan(&finalCount)
	if finalCount != 200 {
		return fail("Reads during writes", "final count %d, expected 200", finalCount)
	}

	return pass("Reads during writes",
		fmt.Sprintf("100 rows inserted while reading, counts in [%d..%d], 0 errors", lo, hi),
		time.Since(start))
}

func scenarioConcurrentWrites(db *sql.DB) bool {
	start := time.Now()
	const goroutines = 10
	const rowsPerGoroutine = 10

	var wg sync.WaitGroup
	var errCount atomic.Int64

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ctx := context.Background()
			base := 201 + g*rowsPerGoroutine
			for i := 0; i < rowsPerGoroutine; i++ {
				id := base + i
				if _, err := db.ExecContext(ctx, "INSERT INTO oggo_bench VALUES ($1, $2)", id, fmt.Sprintf("row%d", id)); err != nil {
					errCount.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	errs := errCount.Load()
	if errs > 0 {
		return fail("Concurrent writes", "%d insert errors", errs)
	}

	var count int64
	db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM oggo_bench").Scan(&count)
	if count != 300 {
		return fail("Concurrent writes", "final count %d, expected 300", count)
	}

	return pass("Concurrent writes",
		fmt.Sprintf("%d goroutines x %d rows = %d inserts, final count %d",
			goroutines, rowsPerGoroutine, goroutines*rowsPerGoroutine, count),
		time.Since(start))
}

func pass(name, detail string, d time.Duration) bool {
	fmt.Printf("[PASS] %s: %s (%dms)\n", name, detail, d.Milliseconds())
	return true
}

func fail(name, format string, args ...any) bool {
	fmt.Printf("[FAIL] %s: %s\n", name, fmt.Sprintf(format, args...))
	return false
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(2)
}
