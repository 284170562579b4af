package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix   = "user:%d"
	ThreadKeyPrefix = "thread:%d"
	RevokedPrefix   = "blacklist:%s"
)

const (
	UserTTL   = 5 * time.Minute
	ThreadTTL = 60 * time.Second
)

// staleWriteWindow covers a reader that loaded before a write and stores its copy after
// the first delete.
var staleWriteWindow = 500 * time.Millisecond

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ThreadKey(threadID uint) string {
	return fmt.Sprintf(ThreadKeyPrefix, threadID)
}

func RevokedKey(jti string) string {
	return fmt.Sprintf(RevokedPrefix, jti)
}

func Invalidate(ctx context.Context, keys ...string) {
	if rdb := GetClient(); rdb != nil && len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateThread(ctx context.Context, threadID uint) {
	Invalidate(ctx, ThreadKey(threadID))
}

// InvalidateSettled deletes keys now and again once staleWriteWindow has passed.
func InvalidateSettled(ctx context.Context, keys ...string) {
	Invalidate(ctx, keys...)
	if GetClient() == nil || len(keys) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	time.AfterFunc(staleWriteWindow, func() {
		ctx, cancel := context.WithTimeout(detached, time.Second)
		defer cancel()
		Invalidate(ctx, keys...)
	})
}
