// Command lstore demonstrates opening a database, creating a table and
// running insert/select/update/delete through it end to end.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kestrelcol/lstore/api"
	"github.com/kestrelcol/lstore/config"
)

func main() {
	path := flag.String("path", "", "database directory (empty = in-memory)")
	flag.Parse()

	var db *api.Database
	var err error
	if *path == "" {
		db = api.OpenMemory()
	} else {
		db, err = api.Open(*path)
		if err != nil {
			log.Fatal(err)
		}
	}
	defer db.Close()

	fmt.Println("=== lstore demo ===")
	fmt.Println()

	fmt.Println("--- create_table(\"grades\", 3, key_index=0) ---")
	grades, err := db.CreateTable("grades", 3, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- insert ---")
	rows := [][]int64{
		{1, 90, 85},
		{2, 75, 80},
		{3, 60, 70},
	}
	for _, r := range rows {
		ok, err := grades.Insert(r)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  insert(%v) -> %v\n", r, ok)
	}
	fmt.Println()

	fmt.Println("--- select(student_id=2) ---")
	recs, err := grades.Select(2, 0, nil, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range recs {
		fmt.Printf("  rid=%d columns=%v\n", r.RID, r.Columns)
	}
	fmt.Println()

	fmt.Println("--- update(student_id=2, midterm=99) ---")
	null := config.NullValue
	ok, err := grades.Update(2, []int64{null, 99, null})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  update -> %v\n", ok)

	fmt.Println("--- select(student_id=2, version=-1) ---")
	recs, err = grades.Select(2, 0, nil, -1)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range recs {
		fmt.Printf("  rid=%d columns=%v (pre-update)\n", r.RID, r.Columns)
	}
	fmt.Println()

	fmt.Println("--- sum(final, student_id in [1,3]) ---")
	sum, err := grades.Sum(1, 3, 2, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  sum = %d\n\n", sum)

	fmt.Println("--- delete(student_id=3) ---")
	ok, err = grades.Delete(3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  delete -> %v, num_records now %d\n", ok, grades.NumRecords())
}
