package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"doodledrop/backend/internal/client"
	"doodledrop/backend/internal/localstore"
	"doodledrop/backend/internal/logger"
)

// app 单次命令执行期间共享的依赖
type app struct {
	v      *viper.Viper
	store  *localstore.Store
	log    *zap.Logger
	syncer *client.Syncer
	relay  *client.RelayClient
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "doodle-state.json"
	}
	return filepath.Join(home, ".doodle", "state.json")
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "doodle",
		Short:        "Send doodles to friends through a Doodle Drop relay",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("state", defaultStatePath(), "path of the local state file")
	flags.String("relay", "", "relay base address (overrides the saved one)")
	flags.Duration("timeout", 0, "HTTP timeout for relay calls (0 uses the transport default)")
	flags.BoolP("verbose", "v", false, "verbose logging")

	a.v.SetEnvPrefix("doodle")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"state", "relay", "timeout", "verbose"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newInitCmd(a),
		newWhoamiCmd(a),
		newConfigCmd(a),
		newFriendsCmd(a),
		newDrawCmd(a),
		newOutboxCmd(a),
		newSendCmd(a),
		newSyncCmd(a),
		newInboxCmd(a),
		newLinkCmd(a),
		newRequestsCmd(a),
	)
	return root
}

// setup 打开状态文件并构建中继客户端
func (a *app) setup() error {
	a.log = logger.NewCLILogger(a.v.GetBool("verbose"))

	store, err := localstore.Open(a.v.GetString("state"))
	if err != nil {
		return err
	}
	a.store = store

	a.relay = client.NewRelayClient(a.relayURL(), a.httpClient())
	a.syncer = client.NewSyncer(a.store, a.relay, a.log)
	return nil
}

// relayURL 命令行/环境变量优先，其次是保存的地址
func (a *app) relayURL() string {
	if u := strings.TrimSpace(a.v.GetString("relay")); u != "" {
		return u
	}
	return a.store.Snapshot().RelayURL
}

func (a *app) httpClient() *http.Client {
	timeout := a.v.GetDuration("timeout")
	if timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: timeout}
}
