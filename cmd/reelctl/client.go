package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"bilireel/engine"
)

const defaultAddr = "127.0.0.1:8086"

var errRejected = errors.New("request rejected")

// client 控制接口的 HTTP 客户端
type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &client{base: strings.TrimRight(addr, "/"), http: &http.Client{Timeout: 60 * time.Second}}
}

func (c *client) do(method, path string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s: %s", errRejected, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func exitCode(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, errRejected) {
		return ExitRejected
	}
	return ExitUnreachable
}

func commonFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr, "Control interface address")
	return fs, addr
}

func runAdd(args []string) int {
	fs, addr := commonFlags("add")
	file := fs.Bool("file", false, "Treat the argument as a descriptor JSON file")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: reelctl add [-addr host:port] [-file] <page-url|descriptor.json>")
		return ExitInvalidArgs
	}

	var payload []byte
	if *file {
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return ExitInvalidArgs
		}
		payload = data
	} else {
		payload, _ = json.Marshal(map[string]string{"url": fs.Arg(0)})
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := newClient(*addr).do(http.MethodPost, "/tasks", bytes.NewReader(payload), &out); err != nil {
		return exitCode(err)
	}
	fmt.Println(out.ID)
	return ExitSuccess
}

func runList(args []string) int {
	fs, addr := commonFlags("list")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	var tasks []engine.TaskRecord
	if err := newClient(*addr).do(http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return exitCode(err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\n", t.ID, t.Status.Label(), t.Progress, t.Title)
	}
	tw.Flush()
	return ExitSuccess
}

func runControl(action string, args []string) int {
	fs, addr := commonFlags(action)
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: reelctl %s [-addr host:port] <task-id>\n", action)
		return ExitInvalidArgs
	}

	var out struct {
		OK bool `json:"ok"`
	}
	path := "/tasks/" + fs.Arg(0) + "/" + action
	if err := newClient(*addr).do(http.MethodPost, path, nil, &out); err != nil {
		return exitCode(err)
	}
	if !out.OK {
		fmt.Fprintf(os.Stderr, "%s: task %s not applicable\n", action, fs.Arg(0))
		return ExitRejected
	}
	return ExitSuccess
}

func runRemove(args []string) int {
	fs, addr := commonFlags("rm")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: reelctl rm [-addr host:port] <task-id>")
		return ExitInvalidArgs
	}
	if err := newClient(*addr).do(http.MethodDelete, "/tasks/"+fs.Arg(0), nil, nil); err != nil {
		return exitCode(err)
	}
	return ExitSuccess
}
