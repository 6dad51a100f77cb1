package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megavibe/megavibe-node/tipClient/chains"
	"github.com/megavibe/megavibe-node/tipClient/config"
	"github.com/megavibe/megavibe-node/tipClient/errors"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitCmd(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "init", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "mvtip_config.json")

	cfg, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, int64(5003), cfg.TargetChainID)
	assert.Equal(t, home, cfg.NodeHome)

	_, err = execute(t, "init", "--home", home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = execute(t, "init", "--home", home, "--force")
	require.NoError(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mvtipd")
	assert.Contains(t, out, Version)
}

func TestChainsCmd(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, "init", "--home", home)
	require.NoError(t, err)

	out, err := execute(t, "chains", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "name: Mantle Sepolia")
	assert.Contains(t, out, "target: true")

	out, err = execute(t, "chains", "--home", home, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"chain_id": 42161`)
}

func TestCommandsRequireConfig(t *testing.T) {
	_, err := execute(t, "chains", "--home", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mvtipd init")
}

func TestTipCmdRejectsBadAmount(t *testing.T) {
	_, err := execute(t, "tip", "--home", t.TempDir(), "--from-chain", "1", "--to", "0x2222222222222222222222222222222222222222", "--amount", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestQueryTipsCmd(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/tips":
			gotQuery = r.URL.Query()
			w.Write([]byte(`{"data":[{"request_id":"tip_1_aaaaaaaa","status":"completed"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"tip tip_missing not found"}`))
		}
	}))
	defer srv.Close()

	home := t.TempDir()
	_, err := execute(t, "init", "--home", home)
	require.NoError(t, err)
	cfg, err := config.Load(home)
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	cfg.QueryServerPort, err = strconv.Atoi(port)
	require.NoError(t, err)
	require.NoError(t, config.Save(&cfg, home))

	out, err := execute(t, "query", "tips", "--home", home, "--status", "completed", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "request_id: tip_1_aaaaaaaa")
	assert.Equal(t, "completed", gotQuery.Get("status"))
	assert.Equal(t, "5", gotQuery.Get("limit"))

	_, err = execute(t, "q", "tip", "tip_missing", "--home", home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPrintOutput(t *testing.T) {
	data := ChainOutput{ChainID: 1, Name: "Ethereum"}

	var buf bytes.Buffer
	require.NoError(t, printOutput(&buf, data, OutputFormatJSON))
	assert.Contains(t, buf.String(), `"name": "Ethereum"`)

	buf.Reset()
	require.NoError(t, printOutput(&buf, data, OutputFormatYAML))
	assert.Contains(t, buf.String(), "chain_id: 1")

	assert.Error(t, printOutput(&buf, data, "xml"))
}

func TestPrintStatus(t *testing.T) {
	source := &chains.Chain{ID: 1, Name: "Ethereum", ExplorerURL: "https://etherscan.io"}
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	printStatus(&buf, orchestrator.TransferStatus{
		Kind:      orchestrator.StatusBridging,
		Message:   "bridging via stargate",
		Timestamp: ts,
		Quote: &orchestrator.Quote{
			TargetAmount: decimal.RequireFromString("4.99").Shift(6).BigInt(),
			Fees:         orchestrator.FeeBreakdown{Gas: decimal.RequireFromString("0.01")},
		},
	}, source)
	assert.Contains(t, buf.String(), "bridging")
	assert.Contains(t, buf.String(), "receive 4.99 USDC, fees $0.01")

	buf.Reset()
	printStatus(&buf, orchestrator.TransferStatus{Kind: orchestrator.StatusConfirming, TxHash: "0xabc", Timestamp: ts}, source)
	assert.Contains(t, buf.String(), "https://etherscan.io/tx/0xabc")

	buf.Reset()
	printStatus(&buf, orchestrator.TransferStatus{
		Kind:      orchestrator.StatusFailed,
		Message:   "no route found",
		Err:       errors.NewNoRouteFoundError("Ethereum"),
		Timestamp: ts,
	}, nil)
	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "error:")
}
