package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onsi/ginkgo/v2"
)

// Run executes the provided command from the project directory and returns its combined output.
// Debug logging is left to the caller's flags so that the output only holds what the command prints.
func Run(cmd *exec.Cmd) (string, error) {
	dir, err := GetProjectDir()
	if err != nil {
		return "", err
	}
	cmd.Dir = dir

	cmd.Env = make([]string, 0, len(os.Environ()))
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "NLOG_DEBUG=") {
			cmd.Env = append(cmd.Env, env)
		}
	}

	command := strings.Join(cmd.Args, " ")
	_, _ = fmt.Fprintf(ginkgo.GinkgoWriter, "running: %q\n", command)
	output, err := cmd.CombinedOutput()
	_, _ = fmt.Fprintf(ginkgo.GinkgoWriter, "output:\n%s\n", output)
	if err != nil {
		return string(output), fmt.Errorf("%q failed with error %q: %w", command, string(output), err)
	}

	return string(output), nil
}

// GetProjectDir will return the directory where the project is
func GetProjectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return wd, fmt.Errorf("failed to get current working directory: %w", err)
	}

	if filepath.Base(wd) == "e2e" {
		wd = filepath.Dir(wd)
	}
	return wd, nil
}
