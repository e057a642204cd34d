package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/internal/version"
	"github.com/stretchr/testify/suite"
)

type CommandTestSuite struct {
	suite.Suite
	configPath string
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func (suite *CommandTestSuite) SetupTest() {
	dir := suite.T().TempDir()
	suite.configPath = filepath.Join(dir, "robots.yaml")

	config := "log_level: error\n" +
		"broker:\n" +
		"  type: paper\n" +
		"  paper:\n" +
		"    instruments:\n" +
		"      - id: BTCUSDT\n" +
		"        lot: 1\n" +
		"store:\n" +
		"  path: " + filepath.Join(dir, "robots.db") + "\n"

	suite.Require().NoError(os.WriteFile(suite.configPath, []byte(config), 0o600))
}

func (suite *CommandTestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	err := cmd.Run(context.Background(), append([]string{"robots", "--config", suite.configPath}, args...))

	return out.String(), err
}

func (suite *CommandTestSuite) decodeState(out string) types.RunState {
	var state types.RunState
	suite.Require().NoError(json.Unmarshal([]byte(out), &state))

	return state
}

func (suite *CommandTestSuite) TestStateDefaultsToStopped() {
	out, err := suite.run("state")
	suite.Require().NoError(err)
	suite.False(suite.decodeState(out).IsRunning)
}

func (suite *CommandTestSuite) TestRunAndStopPersistTheFlag() {
	out, err := suite.run("run")
	suite.Require().NoError(err)
	suite.True(suite.decodeState(out).IsRunning)

	out, err = suite.run("state")
	suite.Require().NoError(err)
	suite.True(suite.decodeState(out).IsRunning)

	out, err = suite.run("stop")
	suite.Require().NoError(err)
	suite.False(suite.decodeState(out).IsRunning)
}

func (suite *CommandTestSuite) TestCheckPaymentsWithEmptyLedger() {
	out, err := suite.run("check-payments")
	suite.Require().NoError(err)
	suite.JSONEq(`{"synced": 0}`, out)
}

func (suite *CommandTestSuite) TestImportResolvesInstrument() {
	out, err := suite.run("import", "--from", "2024-03-01", "--instrument", "BTCUSDT")
	suite.Require().NoError(err)
	suite.JSONEq(`{"instrument": "BTCUSDT", "imported": 0}`, out)

	_, err = suite.run("import", "--from", "2024-03-01", "--instrument", "ETHUSDT")
	suite.Error(err)
}

func (suite *CommandTestSuite) TestInvalidConfig() {
	suite.Require().NoError(os.WriteFile(suite.configPath, []byte("broker:\n  type: nasdaq\n"), 0o600))

	_, err := suite.run("state")
	suite.Error(err)
}

func (suite *CommandTestSuite) TestSchemaAndVersion() {
	out, err := suite.run("schema")
	suite.Require().NoError(err)
	suite.Contains(out, `"robots-config"`)

	out, err = suite.run("version")
	suite.Require().NoError(err)
	suite.Equal(version.GetVersion()+"\n", out)
}
