package moderation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tullo/wordguard/internal/models"
)

// TopN bounds the user and word rankings.
const TopN = 10

type UserCount struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Count    int    `json:"count"`
}

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Statistics summarises the violations of one chat. Ties in every ranking go to
// the entry whose first violation has the lowest log ID.
type Statistics struct {
	ChatID int64                `json:"chat_id"`
	Day    *time.Time           `json:"day,omitempty"`
	Users  []UserCount          `json:"users"`
	Words  []WordCount          `json:"words"`
	Worst  *models.ViolationLog `json:"worst,omitempty"`
}

// Empty reports whether no violations were in scope.
func (s *Statistics) Empty() bool {
	return s.Worst == nil
}

type Aggregator struct {
	store LogStore
}

func NewAggregator(store LogStore) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate computes statistics for chatID, optionally restricted to one UTC day.
func (a *Aggregator) Aggregate(ctx context.Context, chatID int64, day *time.Time) (*Statistics, error) {
	logs, err := a.store.ViolationLogs(ctx, chatID, day, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read violation logs: %w", err)
	}

	stats := Summarize(logs)
	stats.ChatID = chatID
	stats.Day = day
	return stats, nil
}

type userTally struct {
	UserCount
	firstID  int64
	latestID int64
}

type wordTally struct {
	WordCount
	firstID  int64
	firstPos int
}

// Summarize ranks users and words over logs. Rows without matched words are ignored.
func Summarize(logs []models.ViolationLog) *Statistics {
	rows := make([]models.ViolationLog, 0, len(logs))
	for _, l := range logs {
		if l.IsViolation() {
			rows = append(rows, l)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	stats := &Statistics{Users: []UserCount{}, Words: []WordCount{}}
	if len(rows) == 0 {
		return stats
	}

	users := map[int64]*userTally{}
	words := map[string]*wordTally{}
	var worst *models.ViolationLog

	for i := range rows {
		row := &rows[i]

		u, ok := users[row.UserID]
		if !ok {
			u = &userTally{UserCount: UserCount{UserID: row.UserID}, firstID: row.ID}
			users[row.UserID] = u
		}
		u.Count++
		if row.ID >= u.latestID && row.Username != "" {
			u.latestID = row.ID
			u.Username = row.Username
		}

		for pos, w := range row.Words {
			t, ok := words[w]
			if !ok {
				t = &wordTally{WordCount: WordCount{Word: w}, firstID: row.ID, firstPos: pos}
				words[w] = t
			}
			t.Count++
		}

		if worst == nil || len(row.Words) > len(worst.Words) {
			worst = row
		}
	}

	userList := make([]*userTally, 0, len(users))
	for _, u := range users {
		if u.Username == "" {
			u.Username = strconv.FormatInt(u.UserID, 10)
		}
		userList = append(userList, u)
	}
	sort.Slice(userList, func(i, j int) bool {
		if userList[i].Count != userList[j].Count {
			return userList[i].Count > userList[j].Count
		}
		return userList[i].firstID < userList[j].firstID
	})
	for i, u := range userList {
		if i == TopN {
			break
		}
		stats.Users = append(stats.Users, u.UserCount)
	}

	wordList := make([]*wordTally, 0, len(words))
	for _, w := range words {
		wordList = append(wordList, w)
	}
	sort.Slice(wordList, func(i, j int) bool {
		if wordList[i].Count != wordList[j].Count {
			return wordList[i].Count > wordList[j].Count
		}
		if wordList[i].firstID != wordList[j].firstID {
			return wordList[i].firstID < wordList[j].firstID
		}
		return wordList[i].firstPos < wordList[j].firstPos
	})
	for i, w := range wordList {
		if i == TopN {
			break
		}
		stats.Words = append(stats.Words, w.WordCount)
	}

	worstCopy := *worst
	stats.Worst = &worstCopy
	return stats
}
