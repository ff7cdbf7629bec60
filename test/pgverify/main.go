// Command pgverify cross-checks the inequality join against PostgreSQL.
// It generates random join instances, loads them into temp tables,
// runs the equivalent SELECT, and compares the result multisets with
// the library's output.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"

	"github.com/lib/pq"

	"github.com/dshills/QuantaJoin/internal/join"
)

var ops = []join.CmpOp{join.OpLess, join.OpLessEqual, join.OpGreater, join.OpGreaterEqual}

type instance struct {
	op1, op2      join.CmpOp
	leftA, rightA []int64
	leftB, rightB []float64
}

func main() {
	var (
		dsn       = flag.String("dsn", defaultDSN(), "PostgreSQL connection string")
		instances = flag.Int("instances", 32, "Number of random join instances to verify")
		maxRows   = flag.Int("max-rows", 150, "Maximum rows per side")
		seed      = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	fmt.Println("=== Verifying inequality join against PostgreSQL ===")
	fmt.Printf("Connecting to: %s\n", *dsn)

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Temp tables are connection-scoped, so keep a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✅ Connection successful")

	if err := createTables(db); err != nil {
		log.Fatalf("Failed to create temp tables: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	passed := 0
	failed := 0

	for i := 0; i < *instances; i++ {
		// The first sixteen instances walk every operator combination
		inst := genInstance(rng, *maxRows, ops[i%4], ops[(i/4)%4])

		name := fmt.Sprintf("instance %d: a %s a AND b %s b (%dx%d rows)",
			i, inst.op1, inst.op2, len(inst.leftA), len(inst.rightA))

		if err := verify(db, inst); err != nil {
			fmt.Printf("❌ FAILED %s: %v\n", name, err)
			failed++
		} else {
			fmt.Printf("✅ PASSED %s\n", name)
			passed++
		}
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Passed: %d\n", passed)
	fmt.Printf("Failed: %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func defaultDSN() string {
	if dsn := os.Getenv("PGVERIFY_DSN"); dsn != "" {
		return dsn
	}
	return "host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
}

// genInstance builds one random join instance. Values are drawn from a
// small domain so that ties occur.
func genInstance(rng *rand.Rand, maxRows int, op1, op2 join.CmpOp) instance {
	n := rng.Intn(maxRows) + 1
	m := rng.Intn(maxRows) + 1

	inst := instance{
		op1:    op1,
		op2:    op2,
		leftA:  make([]int64, n),
		leftB:  make([]float64, n),
		rightA: make([]int64, m),
		rightB: make([]float64, m),
	}
	for i := range inst.leftA {
		inst.leftA[i] = rng.Int63n(40)
		inst.leftB[i] = float64(rng.Intn(80)) / 2
	}
	for i := range inst.rightA {
		inst.rightA[i] = rng.Int63n(40)
		inst.rightB[i] = float64(rng.Intn(80)) / 2
	}
	return inst
}

func createTables(db *sql.DB) error {
	stmts := []string{
		"CREATE TEMP TABLE pgverify_left (id BIGINT, a BIGINT, b DOUBLE PRECISION)",
		"CREATE TEMP TABLE pgverify_right (id BIGINT, a BIGINT, b DOUBLE PRECISION)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q failed: %w", stmt, err)
		}
	}
	return nil
}

// verify compares the SQL result multiset with the library's for one
// instance.
func verify(db *sql.DB, inst instance) error {
	if err := loadTables(db, inst); err != nil {
		return err
	}

	sqlPairs, err := queryPairs(db, inst)
	if err != nil {
		return err
	}

	libPairs, err := joinPairs(inst)
	if err != nil {
		return err
	}

	sort.Strings(sqlPairs)
	sort.Strings(libPairs)

	if len(sqlPairs) != len(libPairs) {
		return fmt.Errorf("postgres produced %d pairs, library produced %d", len(sqlPairs), len(libPairs))
	}
	for i := range sqlPairs {
		if sqlPairs[i] != libPairs[i] {
			return fmt.Errorf("pair %d differs: postgres %s, library %s", i, sqlPairs[i], libPairs[i])
		}
	}
	return nil
}

// loadTables replaces the temp table contents with the instance data
// using COPY.
func loadTables(db *sql.DB, inst instance) error {
	for _, stmt := range []string{"TRUNCATE pgverify_left", "TRUNCATE pgverify_right"} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	if err := copyRows(db, "pgverify_left", inst.leftA, inst.leftB); err != nil {
		return err
	}
	return copyRows(db, "pgverify_right", inst.rightA, inst.rightB)
}

func copyRows(db *sql.DB, table string, a []int64, b []float64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn(table, "id", "a", "b"))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare COPY failed: %w", err)
	}

	for i := range a {
		if _, err := stmt.Exec(int64(i), a[i], b[i]); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("COPY row failed: %w", err)
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("COPY flush failed: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("COPY close failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// queryPairs runs the join in SQL and returns id pairs.
func queryPairs(db *sql.DB, inst instance) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT l.id, r.id FROM pgverify_left l, pgverify_right r WHERE l.a %s r.a AND l.b %s r.b",
		inst.op1, inst.op2)

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var l, r int64
		if err := rows.Scan(&l, &r); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pairs = append(pairs, fmt.Sprintf("%d:%d", l, r))
	}
	return pairs, rows.Err()
}

// joinPairs runs the same join through the library and returns id
// pairs.
func joinPairs(inst instance) ([]string, error) {
	j, err := join.NewIEJoin(
		join.Predicate[int64]{Op: inst.op1, Left: inst.leftA, Right: inst.rightA},
		join.Predicate[float64]{Op: inst.op2, Left: inst.leftB, Right: inst.rightB},
	)
	if err != nil {
		return nil, fmt.Errorf("join construction failed: %w", err)
	}

	var pairs []string
	for {
		p, ok := j.Next()
		if !ok {
			break
		}
		pairs = append(pairs, fmt.Sprintf("%d:%d", p.Left, p.Right))
	}
	return pairs, nil
}
