// Package config resolves process-group options from environment
// variables and, optionally, a YAML file, layered on top of a fixed
// default set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gocollective/ncclpg/ncclerr"
)

// Env var names recognized by FromEnv.
const (
	EnvBlockingWait    = "NCCL_BLOCKING_WAIT"
	EnvOpTimeoutMs     = "NCCL_OP_TIMEOUT_MS"
	EnvWatchdogSleepMs = "NCCL_WATCHDOG_SLEEP_MS"
	EnvWaitForAbortMs  = "NCCL_WAIT_FOR_ABORT_MS"
)

// Defaults mirror ProcessGroupNCCL's well-known constants:
// kProcessGroupNCCLOpTimeoutMillis, kWatchdogThreadSleepMillis,
// kWaitForAbortCommStoreKey, kSynchronizeBusyWaitMillis.
const (
	DefaultOpTimeout                 = 10 * time.Second
	DefaultWatchdogSleep             = 10 * time.Second
	DefaultWaitForAbortTimeout       = 1 * time.Second
	DefaultSynchronizeBusyWaitPeriod = 10 * time.Millisecond
)

// Options carries every tunable knob of the process group.
type Options struct {
	BlockingWait                 bool          `yaml:"blockingWait"`
	OpTimeout                    time.Duration `yaml:"opTimeout"`
	WatchdogSleep                time.Duration `yaml:"watchdogSleep"`
	WaitForAbortTimeout          time.Duration `yaml:"waitForAbortTimeout"`
	SynchronizeBusyWaitPeriod    time.Duration `yaml:"synchronizeBusyWaitPeriod"`
	MinSupportedBackendVersion   string        `yaml:"minSupportedBackendVersion"`
}

// Defaults returns ProcessGroupNCCL's conventional default option set. It
// reads no environment variables; FromEnv and Load layer overrides on top
// of it.
func Defaults() Options {
	return Options{
		BlockingWait:               false,
		OpTimeout:                  DefaultOpTimeout,
		WatchdogSleep:              DefaultWatchdogSleep,
		WaitForAbortTimeout:        DefaultWaitForAbortTimeout,
		SynchronizeBusyWaitPeriod:  DefaultSynchronizeBusyWaitPeriod,
		MinSupportedBackendVersion: "2.0.0",
	}
}

// FromEnv resolves Options from environment variables, starting from
// Defaults(). NCCL_BLOCKING_WAIT must be "0" or "1" if set; any other
// value fails construction fast rather than silently falling back to a
// default.
func FromEnv() (Options, error) {
	opts := Defaults()

	if v, ok := os.LookupEnv(EnvBlockingWait); ok {
		switch v {
		case "0":
			opts.BlockingWait = false
		case "1":
			opts.BlockingWait = true
		default:
			return Options{}, ncclerr.New(ncclerr.InvalidArgument,
				"invalid value %q for %s: must be \"0\" or \"1\"", v, EnvBlockingWait)
		}
	}

	if err := durationFromEnv(EnvOpTimeoutMs, &opts.OpTimeout); err != nil {
		return Options{}, err
	}
	if err := durationFromEnv(EnvWatchdogSleepMs, &opts.WatchdogSleep); err != nil {
		return Options{}, err
	}
	if err := durationFromEnv(EnvWaitForAbortMs, &opts.WaitForAbortTimeout); err != nil {
		return Options{}, err
	}

	return opts, nil
}

func durationFromEnv(name string, out *time.Duration) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return ncclerr.New(ncclerr.InvalidArgument, "invalid value %q for %s: must be a positive integer", v, name)
	}
	*out = time.Duration(ms) * time.Millisecond
	return nil
}

// Load reads Options from a YAML file, layered on top of Defaults() for
// any field the file omits.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config file: %w", err)
	}
	opts := Defaults()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config file: %w", err)
	}
	return opts, nil
}
