// Package storage persists debate configurations, summaries and learning
// bundles on top of a kv.Store.
//
// Layout:
//
//	debate_config_<id>     DebateConfiguration
//	active_debate_ids      []string
//	completed_debates      []CompletedRef
//	debate_summary_<id>    DebateSummaryRecord
//	debate_messages_<id>   []DebateMessage (completed debates only)
//	learning_<id>          Learning
//	learning_ids           []string
//	file_<id>              StoredFile
//	learning_files_<id>    []string (file ids for a learning)
package storage

import "errors"

// ErrNotFound is returned when a learning or file does not exist.
var ErrNotFound = errors.New("not found")

const (
	configPrefix        = "debate_config_"
	activeIDsKey        = "active_debate_ids"
	completedRefsKey    = "completed_debates"
	summaryPrefix       = "debate_summary_"
	transcriptPrefix    = "debate_messages_"
	learningPrefix      = "learning_"
	learningIDsKey      = "learning_ids"
	filePrefix          = "file_"
	learningFilesPrefix = "learning_files_"
)

func configKey(id string) string     { return configPrefix + id }
func summaryKey(id string) string    { return summaryPrefix + id }
func transcriptKey(id string) string { return transcriptPrefix + id }
func learningKey(id string) string   { return learningPrefix + id }
func fileKey(id string) string       { return filePrefix + id }

func learningFilesKey(learningID string) string { return learningFilesPrefix + learningID }

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
