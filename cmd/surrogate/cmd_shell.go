package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"surrogate/pkg/client"
)

const Prompt = "surrogate> "

var shellFlags struct {
	addr string
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive client for the binary protocol server",
	RunE:  runShell,
}

func init() {
	shellCmd.Flags().StringVar(&shellFlags.addr, "addr", "localhost:9090", "Surrogate TCP server address")
}

func runShell(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Surrogate shell (Target: %s)\n", shellFlags.addr)

	cli, err := client.Dial(shellFlags.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w (is 'surrogate serve' running?)", shellFlags.addr, err)
	}
	defer cli.Close()
	fmt.Fprintln(out, "Connected! Type 'help' for commands.")

	shellLoop(cli, cmd.InOrStdin(), out)
	return nil
}

func shellLoop(cli *client.Client, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch cmd := strings.ToLower(parts[0]); cmd {
		case "eval", "e":
			handleEval(cli, parts, out)
		case "status":
			handleStatus(cli, out)
		case "calibrate":
			start := time.Now()
			if err := cli.Calibrate(); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else {
				fmt.Fprintf(out, "OK (%v)\n", time.Since(start))
			}
		case "help":
			printShellHelp(out)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintf(out, "Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
}

func handleEval(cli *client.Client, parts []string, out io.Writer) {
	if len(parts) < 2 {
		fmt.Fprintln(out, "Usage: eval <x1> [x2 ...]")
		return
	}

	point := make([]float64, len(parts)-1)
	for i, p := range parts[1:] {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			fmt.Fprintf(out, "Error: coordinate %q is not a number\n", p)
			return
		}
		point[i] = x
	}

	res, err := cli.Evaluate(point)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	source := "model"
	if res.Approximated {
		source = "approx"
	}
	fmt.Fprintf(out, "%.10g [%s] (%v)\n", res.Value, source, res.Latency)
}

func handleStatus(cli *client.Client, out io.Writer) {
	st, err := cli.Status()
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "method=%s precision=%g training=%d pending=%d valid=%v 2-sigma=%.4g\n",
		st.Method, st.Precision, st.TrainingSize, st.Pending, st.Valid, st.TwoSigma)
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, `
Commands:
  eval <x1> [x2 ...]     Evaluate the model at a point
  status                 Show calibration and training set
  calibrate              Retrain on pending evaluations
  exit                   Exit shell
	`)
}
