package statepaths

import (
	"github.com/quailyquaily/socialsim/internal/pathutil"
	"github.com/spf13/viper"
)

const (
	PostsFilename           = "posts.json"
	SQLiteFilename          = "socialsim.db"
	ConversationLogFilename = "conversation_log.jsonl"
)

func FileStateDir() string {
	return pathutil.ResolveStateDir(viper.GetString("file_state_dir"))
}

func MemoryDir() string {
	return pathutil.ResolveStateChildDir(
		viper.GetString("file_state_dir"),
		viper.GetString("memory.dir_name"),
		"memory",
	)
}

func PolicyDir() string {
	return pathutil.ResolveStateChildDir(
		viper.GetString("file_state_dir"),
		viper.GetString("train.dir_name"),
		"policy",
	)
}

func PostsPath() string {
	return pathutil.ResolveStateFile(viper.GetString("file_state_dir"), PostsFilename)
}

// SQLiteDSN prefers store.sqlite.dsn and falls back to a database file in the
// state dir.
func SQLiteDSN() string {
	if dsn := viper.GetString("store.sqlite.dsn"); dsn != "" {
		return pathutil.ExpandHomePath(dsn)
	}
	return pathutil.ResolveStateFile(viper.GetString("file_state_dir"), SQLiteFilename)
}

func ConversationLogPath() string {
	return pathutil.ResolveStateFile(viper.GetString("file_state_dir"), ConversationLogFilename)
}
