
// sysbox-lsmd log parser

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	pidRe     = regexp.MustCompile(`pid=[0-9]+`)
	verdictRe = regexp.MustCompile(`verdict=[a-z]+`)
)

// parseVerdicts scans a sysbox-lsmd log and builds a map of pid -> the set
// of distinct verdicts logged for it (e.g. "allow", "deny", "fault"). A
// pid that only ever shows "allow" is a quiet process; one with both
// "allow" and "deny" is worth a closer look.
func parseVerdicts(infile string, verdictMap map[int]map[string]bool) error {
	file, err := os.Open(infile)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	for {
		line, err := reader.ReadSlice('\n')
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed to read file %s: %v", infile, err)
		}

		pidToken := pidRe.Find(line)
		verdictToken := verdictRe.Find(line)
		if pidToken == nil || verdictToken == nil {
			continue
		}

		pidStr := strings.TrimPrefix(string(pidToken), "pid=")
		pid64, err := strconv.ParseInt(pidStr, 10, 32)
		if err != nil {
			return fmt.Errorf("failed to convert %s to int: %v", pidStr, err)
		}
		pid := int(pid64)

		verdict := strings.TrimPrefix(string(verdictToken), "verdict=")

		if _, found := verdictMap[pid]; !found {
			verdictMap[pid] = make(map[string]bool)
		}
		verdictMap[pid][verdict] = true
	}

	return nil
}

// dumpPidLines writes every log line mentioning pid to pid_<pid>.log, run
// concurrently across all pids found by parseVerdicts.
func dumpPidLines(data []byte, pid int, wg *sync.WaitGroup, errch chan error) {
	defer wg.Done()

	outfile := fmt.Sprintf("pid_%d.log", pid)
	outf, err := os.Create(outfile)
	if err != nil {
		errch <- err
		return
	}
	defer outf.Close()

	tokenRe := regexp.MustCompile(fmt.Sprintf(`\bpid=%d\b`, pid))
	for _, line := range strings.Split(string(data), "\n") {
		if tokenRe.MatchString(line) {
			if _, err := outf.WriteString(line + "\n"); err != nil {
				errch <- fmt.Errorf("failed to write to file %s: %v", outfile, err)
				return
			}
		}
	}
}

func dumpAll(infile string, verdictMap map[int]map[string]bool) error {
	var wg sync.WaitGroup

	inData, err := os.ReadFile(infile)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %v", infile, err)
	}

	errch := make(chan error, len(verdictMap))

	for pid := range verdictMap {
		wg.Add(1)
		go dumpPidLines(inData, pid, &wg, errch)
	}

	wg.Wait()

	select {
	case err := <-errch:
		return err
	default:
	}

	return nil
}

func usage() {
	fmt.Printf("%s <filename>\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	filename := os.Args[1]

	verdictMap := make(map[int]map[string]bool)

	if err := parseVerdicts(filename, verdictMap); err != nil {
		fmt.Printf("Failed to parse file %s: %v", filename, err)
		os.Exit(1)
	}

	mixed := 0
	for pid, verdicts := range verdictMap {
		if len(verdicts) > 1 {
			mixed++
			fmt.Printf("pid %d: %d distinct verdicts\n", pid, len(verdicts))
		}
	}
	fmt.Printf("%d pids logged, %d with mixed verdicts\n", len(verdictMap), mixed)

	if err := dumpAll(filename, verdictMap); err != nil {
		fmt.Printf("Failed to dump per-pid logs: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Done.\n")
}
