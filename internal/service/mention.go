package service

import (
	"context"
	"regexp"

	"forum_go/internal/core/logger"
	"forum_go/internal/core/mq"
	"forum_go/internal/model"
	"forum_go/internal/repository"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_]{2,32})`)

// MentionInput 提及处理入参
type MentionInput struct {
	Content  string
	AuthorID int64
	Type     string // thread / post
	ThreadID int64
	PostID   *int64
	Context  string // title / body
}

// Mention 一条被提及记录
type Mention struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// MentionProcessor 提及处理
type MentionProcessor interface {
	ProcessMentions(ctx context.Context, in MentionInput) ([]Mention, error)
}

// UserMentionProcessor 解析 @username，向被提及用户发送事件
type UserMentionProcessor struct {
	users   repository.UserRepository
	emitter mq.Emitter
}

// NewUserMentionProcessor 创建 UserMentionProcessor
func NewUserMentionProcessor(users repository.UserRepository, emitter mq.Emitter) *UserMentionProcessor {
	return &UserMentionProcessor{users: users, emitter: emitter}
}

// ExtractMentions 提取去重后的用户名，保持出现顺序
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// ProcessMentions 作者提及自己不产生记录；事件发送失败只记录日志
func (p *UserMentionProcessor) ProcessMentions(ctx context.Context, in MentionInput) ([]Mention, error) {
	names := ExtractMentions(in.Content)
	if len(names) == 0 {
		return nil, nil
	}

	users, err := p.users.GetByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}

	mentions := make([]Mention, 0, len(users))
	for _, u := range users {
		if u.ID == in.AuthorID {
			continue
		}
		mentions = append(mentions, Mention{UserID: u.ID, Username: u.Username})
		p.emit(ctx, u, in)
	}
	return mentions, nil
}

func (p *UserMentionProcessor) emit(ctx context.Context, u *model.User, in MentionInput) {
	err := p.emitter.Emit(ctx, mq.EventMentionCreated, mq.MentionCreated{
		MentionedUserID: u.ID,
		AuthorID:        in.AuthorID,
		ThreadID:        in.ThreadID,
		PostID:          in.PostID,
		Type:            in.Type,
		Context:         in.Context,
	})
	if err != nil {
		logger.Warn("emit mention failed",
			logger.Int64("thread_id", in.ThreadID),
			logger.Int64("user_id", u.ID),
			logger.ErrorField(err))
	}
}
