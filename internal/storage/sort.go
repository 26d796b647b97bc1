package storage

import (
	"sort"

	"github.com/alienxp03/rhetor/internal/core"
)

func sortNewestFirst(list []core.DebateConfiguration) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})
}
