// journalq queries the trade journal from the command line: filter by
// symbol, status or action without loading the whole file into anything
// heavier than a terminal.
//
//	journalq -f data/journal.jsonl -symbol BTCUSDT -status skipped -n 20
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

func main() {
	var (
		path   = flag.String("f", "data/journal.jsonl", "journal file")
		symbol = flag.String("symbol", "", "filter by symbol")
		status = flag.String("status", "", "filter by status (filled|submitted|skipped|failed)")
		action = flag.String("action", "", "filter by action (BUY|SELL)")
		last   = flag.Int("n", 0, "print only the last N matches")
	)
	flag.Parse()

	file, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var matches []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if *symbol != "" && !strings.EqualFold(gjson.Get(line, "symbol").String(), *symbol) {
			continue
		}
		if *status != "" && !strings.EqualFold(gjson.Get(line, "status").String(), *status) {
			continue
		}
		if *action != "" && !strings.EqualFold(gjson.Get(line, "action").String(), *action) {
			continue
		}
		matches = append(matches, line)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read journal: %v", err)
	}

	if *last > 0 && len(matches) > *last {
		matches = matches[len(matches)-*last:]
	}
	for _, line := range matches {
		fmt.Println(render(line))
	}
}

func render(line string) string {
	ts := gjson.Get(line, "timestamp").String()
	if len(ts) > 19 {
		ts = ts[:19]
	}
	out := fmt.Sprintf("%s  %-8s %-4s %-9s", ts,
		gjson.Get(line, "symbol").String(),
		gjson.Get(line, "action").String(),
		gjson.Get(line, "status").String())
	if qty := gjson.Get(line, "quantity").String(); qty != "" {
		out += fmt.Sprintf(" qty=%s", qty)
	}
	if price := gjson.Get(line, "price").String(); price != "" {
		out += fmt.Sprintf(" price=%s", price)
	}
	if reason := gjson.Get(line, "reason").String(); reason != "" {
		out += fmt.Sprintf("  %s", reason)
	}
	if msg := gjson.Get(line, "err_msg").String(); msg != "" {
		out += fmt.Sprintf("  err=%s", msg)
	}
	return out
}
