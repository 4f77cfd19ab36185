// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package macho

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Tool implements DescriptorReader and LinkRewriter by shelling out to
// the platform linker tools: otool for inspection and
// install_name_tool for edits. Tool paths are resolved once at
// construction; on systems where the bare names are not on PATH the
// tools are invoked through xcrun.
type Tool struct {
	// otool and installNameTool are argv prefixes: either
	// {"/usr/bin/otool"} or {"xcrun", "otool"}.
	otool           []string
	installNameTool []string

	logger *slog.Logger
}

// NewTool resolves the linker tools and returns a Tool using them.
// Resolution prefers bare names on PATH and falls back to xcrun
// dispatch, matching how Xcode installs expose the toolchain.
func NewTool(logger *slog.Logger) (*Tool, error) {
	otool, err := resolveTool("otool")
	if err != nil {
		return nil, err
	}
	installNameTool, err := resolveTool("install_name_tool")
	if err != nil {
		return nil, err
	}
	return &Tool{
		otool:           otool,
		installNameTool: installNameTool,
		logger:          logger,
	}, nil
}

// resolveTool returns the argv prefix for invoking the named linker
// tool.
func resolveTool(name string) ([]string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return []string{path}, nil
	}
	xcrun, err := exec.LookPath("xcrun")
	if err != nil {
		return nil, fmt.Errorf("%s not found on PATH and xcrun unavailable", name)
	}
	return []string{xcrun, name}, nil
}

// Dependencies lists the binary's dependency references by parsing the
// load command dump from "otool -l". Parsing the full dump (rather
// than "otool -L") distinguishes LC_ID_DYLIB from the load commands,
// so the binary's self-identity is excluded structurally instead of by
// string comparison.
func (t *Tool) Dependencies(path string) ([]DependencyRef, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DescriptorError{Path: path, Err: err}
	}

	argv := append(append([]string{}, t.otool...), "-l", path)
	output, err := exec.Command(argv[0], argv[1:]...).Output()
	if err != nil {
		return nil, &DescriptorError{Path: path, Err: commandError(err)}
	}

	commands, err := parseLoadCommands(output)
	if err != nil {
		return nil, &DescriptorError{Path: path, Err: err}
	}

	refs := make([]DependencyRef, 0, len(commands))
	for _, command := range commands {
		if !command.isLoad() {
			continue
		}
		if IsRelocatable(command.name) {
			continue
		}
		refs = append(refs, DependencyRef{Path: command.name})
	}
	return refs, nil
}

// Identity returns the binary's LC_ID_DYLIB install name, or the empty
// string for a main executable (which has none).
func (t *Tool) Identity(path string) (string, error) {
	argv := append(append([]string{}, t.otool...), "-l", path)
	output, err := exec.Command(argv[0], argv[1:]...).Output()
	if err != nil {
		return "", &DescriptorError{Path: path, Err: commandError(err)}
	}
	commands, err := parseLoadCommands(output)
	if err != nil {
		return "", &DescriptorError{Path: path, Err: err}
	}
	for _, command := range commands {
		if command.cmd == "LC_ID_DYLIB" {
			return command.name, nil
		}
	}
	return "", nil
}

// SetIdentity rewrites the library's install name with
// "install_name_tool -id".
func (t *Tool) SetIdentity(path, newID string) error {
	t.logger.Debug("set identity", "binary", path, "id", newID)
	if err := t.runInstallNameTool(path, "-id", newID, path); err != nil {
		return &RewriteError{Path: path, Op: "set identity", Err: err}
	}
	return nil
}

// ChangeDependency rewrites one dependency reference with
// "install_name_tool -change". install_name_tool treats an absent
// oldRef as a successful no-op, which is exactly the contract the
// relocation engine needs for re-runs.
func (t *Tool) ChangeDependency(path, oldRef, newRef string) error {
	t.logger.Debug("change dependency", "binary", path, "old", oldRef, "new", newRef)
	if err := t.runInstallNameTool(path, "-change", oldRef, newRef, path); err != nil {
		return &RewriteError{Path: path, Op: "change dependency", Err: err}
	}
	return nil
}

// runInstallNameTool invokes install_name_tool with the given
// arguments, capturing stderr for the error message.
func (t *Tool) runInstallNameTool(path string, args ...string) error {
	argv := append(append([]string{}, t.installNameTool...), args...)
	output, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		message := strings.TrimSpace(string(output))
		if message != "" {
			return fmt.Errorf("%s: %s", err, message)
		}
		return err
	}
	return nil
}

// commandError folds an exec.ExitError's stderr into the error text so
// otool's diagnostic (e.g. "is not an object file") survives wrapping.
func commandError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}

// loadCommand is one parsed entry from an "otool -l" dump. Only dylib
// commands carry a name.
type loadCommand struct {
	cmd  string
	name string
}

// isLoad reports whether the command declares a runtime library
// dependency (as opposed to identifying the binary itself).
func (c loadCommand) isLoad() bool {
	switch c.cmd {
	case "LC_LOAD_DYLIB", "LC_LOAD_WEAK_DYLIB", "LC_REEXPORT_DYLIB", "LC_LOAD_UPWARD_DYLIB":
		return true
	}
	return false
}

// parseLoadCommands extracts dylib load commands from "otool -l"
// output. The dump is line oriented:
//
//	Load command 4
//	          cmd LC_LOAD_DYLIB
//	      cmdsize 56
//	         name /src/libA.dylib (offset 24)
//
// Commands without a name line (segments, symbol tables, ...) are
// skipped. The "(offset N)" suffix on name lines is stripped.
func parseLoadCommands(output []byte) ([]loadCommand, error) {
	var (
		commands []loadCommand
		current  string
	)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "cmd "):
			current = strings.TrimSpace(strings.TrimPrefix(line, "cmd "))
		case strings.HasPrefix(line, "name "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "name "))
			if index := strings.LastIndex(name, " (offset "); index >= 0 {
				name = name[:index]
			}
			if current != "" {
				commands = append(commands, loadCommand{cmd: current, name: name})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning otool output: %w", err)
	}
	return commands, nil
}
