package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the project daemon's log file",
	Example: `  phpdomain logs -f
  phpdomain logs --warnings`,
	Run: runLogs,
}

var (
	logsFollow   bool
	logsLines    int
	logsWarnings bool
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().BoolVarP(&logsWarnings, "warnings", "w", false, "show only warnings and errors from the last build")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath(loadConfig().Root)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("no log file found (daemon may not have run yet)")
		return
	}

	if logsWarnings {
		if err := printBuildWarnings(logPath); err != nil {
			log.Fatalf("reading log failed: %v", err)
		}
		return
	}

	tailArgs := []string{"-n", strconv.Itoa(logsLines)}
	if logsFollow {
		tailArgs = append(tailArgs, "-f")
	}
	tailArgs = append(tailArgs, logPath)

	tailCmd := exec.Command("tail", tailArgs...)
	tailCmd.Stdout = os.Stdout
	tailCmd.Stderr = os.Stderr

	if err := tailCmd.Run(); err != nil {
		log.Fatalf("tail failed: %v", err)
	}
}

// printBuildWarnings prints the warning and error records logged since the
// last build started.
func printBuildWarnings(logPath string) error {
	f, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, `msg="build started"`) {
			lines = lines[:0]
			continue
		}
		if strings.Contains(line, "level=WARN") || strings.Contains(line, "level=ERROR") {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if len(lines) == 0 {
		fmt.Println("no warnings")
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
