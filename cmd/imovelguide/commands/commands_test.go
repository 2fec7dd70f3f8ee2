package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/orchestrator"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// execute runs args against a root carrying the global flags main.go defines.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "imovelguide", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().CountP("verbose", "v", "")
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(AmCmd, DbCmd, IntegrationsCmd, EnqueueCmd, JobsCmd, RunCmd, VersionCmd)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(testContext(t))
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "imovelguide.toml")
	cfg := `[database]
path = "` + filepath.ToSlash(filepath.Join(dir, "imovelguide.db")) + `"

[storage]
driver = "memory"

[metrics]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<ListingDataFeed xmlns="http://www.vivareal.com/schemas/1.0/VRSync"><Listings>
<Listing>
  <ListingID>AP-10</ListingID>
  <Title>Apartamento no Batel</Title>
  <TransactionType>For Sale</TransactionType>
  <Details>
    <PropertyType>Residential / Apartment</PropertyType>
    <ListPrice currency="BRL">450000</ListPrice>
    <LivingArea unit="square metres">72</LivingArea>
  </Details>
  <Location><State abbreviation="PR">Paraná</State><City>Curitiba</City></Location>
</Listing>
<Listing>
  <ListingID>AP-11</ListingID>
  <TransactionType>Permuta</TransactionType>
  <Details><ListPrice currency="BRL">300000</ListPrice></Details>
</Listing>
</Listings></ListingDataFeed>`

func TestIntegrationLifecycleFromTheCLI(t *testing.T) {
	config := writeConfig(t)
	feedPath := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(feedPath, []byte(feed), 0o600))

	out, err := execute(t, "--config", config, "db", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	out, err = execute(t, "--config", config, "integrations", "add",
		"--account", "21", "--system", "vrsync", "--url", "https://feeds.example/21.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "Integration 1 created for account 21")
	assert.Contains(t, out, "Queued job")

	out, err = execute(t, "--config", config, "run", "1", "--file", feedPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Run complete")
	assert.Contains(t, out, "unresolved_offer_type")

	out, err = execute(t, "--config", config, "jobs", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:       done")
	assert.Contains(t, out, "Attempts:     1")

	out, err = execute(t, "--config", config, "integrations", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "integrated")
	assert.Contains(t, out, "1/2")

	out, err = execute(t, "--config", config, "enqueue", "1", "--class", "plan", "--delay", "10m")
	require.NoError(t, err)
	assert.Contains(t, out, "pending, plan")

	out, err = execute(t, "--config", config, "jobs", "ls", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "plan")

	_, err = execute(t, "--config", config, "run", "99")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestAmCommands(t *testing.T) {
	config := writeConfig(t)

	out, err := execute(t, "--config", config, "am", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, err = execute(t, "--config", config, "am", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"driver": "memory"`)

	configFormat = "toml"
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "imovelguide "), out)
}

type staticFetcher string

func (f staticFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(f))), nil
}

func TestStdinFetcher(t *testing.T) {
	f := stdinFetcher{next: staticFetcher("from url"), in: strings.NewReader("from stdin")}

	rc, err := f.Fetch(testContext(t), StdinSource)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "from stdin", string(body))

	rc, err = f.Fetch(testContext(t), "https://feeds.example/1.xml")
	require.NoError(t, err)
	body, _ = io.ReadAll(rc)
	assert.Equal(t, "from url", string(body))
}

func TestCLIEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := NewCLIEmitter(&buf, 1)
	e.EmitStage("normalize", "2 records")
	e.EmitProgress(1, 2)
	e.EmitComplete(map[string]interface{}{"skipped": 1, "inserted": 1})
	e.EmitError("fetch", errors.New("503"))

	out := buf.String()
	assert.Contains(t, out, "normalize: 2 records")
	assert.Contains(t, out, "1 of 2 records")
	assert.Less(t, strings.Index(out, "inserted: 1"), strings.Index(out, "skipped: 1"))
	assert.Contains(t, out, "fetch failed: 503")
}

func TestOutcomeError(t *testing.T) {
	assert.NoError(t, outcomeError(orchestrator.Outcome{Success: true}))
	assert.ErrorContains(t, outcomeError(orchestrator.Outcome{
		Action: orchestrator.ActionRetryLater, Reason: orchestrator.ReasonLockHeld,
	}), "lock_held")
	assert.ErrorContains(t, outcomeError(orchestrator.Outcome{
		Action:  orchestrator.ActionRetryLater,
		Reason:  "feed_unavailable",
		Metrics: integration.RunMetrics{EndedAt: time.Now()},
	}), "run failed: feed_unavailable")
	assert.ErrorContains(t, outcomeError(orchestrator.Outcome{
		Action: orchestrator.ActionMarkFailed, Reason: orchestrator.ReasonRetriesExhausted,
	}), "retries_exhausted")
}

func TestIntegrationsAddRejectsLocalFeedURL(t *testing.T) {
	config := writeConfig(t)
	_, err := execute(t, "--config", config, "db", "migrate")
	require.NoError(t, err)

	_, err = execute(t, "--config", config, "integrations", "add",
		"--account", "21", "--system", "vrsync", "--url", "file:///etc/passwd")
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}
