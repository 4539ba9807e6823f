package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/moexbot/core/buildinfo"
	coreconfig "github.com/m3rciful/moexbot/core/config"
	coretelegram "github.com/m3rciful/moexbot/core/telegram"
)

type carrier struct{ core *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.core }

type app struct{ opts coretelegram.RunOptions }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func testOptions(loaded *string, ran *coretelegram.RunOptions) Options {
	return Options{
		Name:              "moexbot",
		Stdout:            &bytes.Buffer{},
		ConfigEnvVar:      "MOEXBOT_TEST_CONFIG",
		DefaultConfigPath: "default.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			*loaded = path
			return carrier{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app{opts: coretelegram.RunOptions{Background: make([]coretelegram.Task, 2)}}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			*ran = opts
			return nil
		},
	}
}

func TestRunConfigPathPrecedence(t *testing.T) {
	var loaded string
	var ran coretelegram.RunOptions

	opts := testOptions(&loaded, &ran)
	if err := Run(opts); err != nil {
		t.Fatal(err)
	}
	if loaded != "default.yaml" {
		t.Fatalf("loaded %q", loaded)
	}

	t.Setenv("MOEXBOT_TEST_CONFIG", "env.yaml")
	if err := Run(opts); err != nil {
		t.Fatal(err)
	}
	if loaded != "env.yaml" {
		t.Fatalf("loaded %q", loaded)
	}

	opts.Args = []string{"-config", "flag.yaml"}
	if err := Run(opts); err != nil {
		t.Fatal(err)
	}
	if loaded != "flag.yaml" {
		t.Fatalf("loaded %q", loaded)
	}
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	var loaded string
	var ran coretelegram.RunOptions
	if err := Run(testOptions(&loaded, &ran)); err != nil {
		t.Fatal(err)
	}
	if ran.OnStart == nil || ran.OnStop == nil {
		t.Fatal("hooks not installed")
	}
	if err := ran.OnStart(context.Background(), coretelegram.Runtime{}); err != nil {
		t.Fatal(err)
	}
	if err := ran.OnStop(context.Background(), coretelegram.Runtime{}); err != nil {
		t.Fatal(err)
	}
}

func TestRunVersion(t *testing.T) {
	var loaded string
	var ran coretelegram.RunOptions
	out := &bytes.Buffer{}
	opts := testOptions(&loaded, &ran)
	opts.Stdout = out
	opts.Args = []string{"-version"}
	if err := Run(opts); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != buildinfo.String() || loaded != "" {
		t.Fatalf("out = %q, loaded = %q", out.String(), loaded)
	}
}

func TestRunErrors(t *testing.T) {
	var loaded string
	var ran coretelegram.RunOptions

	if err := Run(Options{}); err == nil {
		t.Fatal("missing callbacks accepted")
	}

	opts := testOptions(&loaded, &ran)
	opts.Args = []string{"-bogus"}
	if err := Run(opts); err == nil {
		t.Fatal("unknown flag accepted")
	}

	opts = testOptions(&loaded, &ran)
	boom := errors.New("boom")
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom }
	if err := Run(opts); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	opts = testOptions(&loaded, &ran)
	opts.LoadConfig = func(string) (ConfigCarrier, error) { return carrier{}, nil }
	if err := Run(opts); err == nil {
		t.Fatal("missing core config accepted")
	}
}
