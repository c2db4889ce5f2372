package main

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bollettaetica/fatture-cli/internal/model"
	"github.com/bollettaetica/fatture-cli/internal/registry"
	"github.com/bollettaetica/fatture-cli/internal/store"
	"github.com/bollettaetica/fatture-cli/pkg/portal"
)

var (
	uploadRegistry      string
	uploadSkipConguagli bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Upload result documents to the billing portal",
	Long: `Uploads every *.json result document under the given directory through the
portal's JSON import endpoint. With --registry, uploads the spreadsheet file
of each supply point listed in the registry instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir := args[0]

		opts := []portal.Option{
			portal.WithBaseURL(cfg.Portal.BaseURL),
			portal.WithRateLimit(cfg.Portal.RatePerSecond),
		}
		if cfg.Portal.InsecureTLS {
			opts = append(opts, portal.WithInsecureTLS())
		}
		client := portal.NewClient(opts...)

		username, password, err := credentials()
		if err != nil {
			return err
		}
		status, err := client.Login(ctx, username, password)
		if err != nil {
			return err
		}
		if !status.OK() {
			return eris.Errorf("login rejected: %s", status.Type)
		}
		zap.L().Info("logged in", zap.String("portal", cfg.Portal.BaseURL))

		if uploadRegistry != "" {
			return uploadFromRegistry(ctx, client, dir, uploadRegistry)
		}
		return uploadDocuments(ctx, client, dir)
	},
}

// credentials resolves portal credentials from config, falling back to an
// interactive prompt.
func credentials() (string, string, error) {
	username, password := cfg.Portal.Username, cfg.Portal.Password
	in := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Nome utente: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return "", "", eris.Wrap(err, "read username")
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return "", "", eris.Wrap(err, "read password")
		}
		password = strings.TrimSpace(line)
	}
	return username, password, nil
}

func uploadDocuments(ctx context.Context, client portal.Client, dir string) error {
	var uploaded, failed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		data, err := documentPayload(path)
		if err != nil {
			return err
		}
		status, err := client.ImportJSON(ctx, data)
		if err != nil {
			return err
		}
		if status.OK() {
			uploaded++
		} else {
			failed++
		}
		fmt.Printf("%s %s\n", path, status.Type)
		return nil
	})
	if err != nil {
		return eris.Wrapf(err, "upload documents in %s", dir)
	}

	zap.L().Info("upload finished", zap.Int("uploaded", uploaded), zap.Int("failed", failed))
	return nil
}

// documentPayload reads one result document, dropping superseded entries
// when --skip-conguagli is set.
func documentPayload(path string) ([]byte, error) {
	if !uploadSkipConguagli {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", path)
		}
		return data, nil
	}
	results, err := store.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return store.EncodeDocument(model.WithoutConguagli(results))
}

func uploadFromRegistry(ctx context.Context, client portal.Client, dir, registryPath string) error {
	forniture, err := registry.Load(registryPath)
	if err != nil {
		return err
	}

	for _, f := range forniture {
		scheda := f.Scheda
		if !filepath.IsAbs(scheda) {
			scheda = filepath.Join(dir, scheda)
		}
		file, err := os.Open(scheda)
		if err != nil {
			return eris.Wrapf(err, "open scheda %s", scheda)
		}
		status, err := client.ImportFile(ctx, f.ID, filepath.Base(scheda), file)
		file.Close()
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", f.Scheda, status.Type)
	}
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadRegistry, "registry", "", "forniture registry file (txt or xlsx); uploads spreadsheets per supply point")
	uploadCmd.Flags().BoolVar(&uploadSkipConguagli, "skip-conguagli", false, "drop superseded invoices from documents before uploading")
	rootCmd.AddCommand(uploadCmd)
}
