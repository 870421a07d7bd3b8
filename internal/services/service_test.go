package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"
	"direct-chat/internal/repositories"
	"direct-chat/internal/storage"
)

const blobBase = "http://blobs.test"

type fixture struct {
	store *repositories.MemoryStore
	blobs *storage.MemoryStore
	svc   *ChatService
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	blobs := storage.NewMemoryStore(blobBase)
	avatar := "users/bob.png"
	store.PutProfile(models.Profile{ID: "alice", Username: "alice"})
	store.PutProfile(models.Profile{ID: "bob", Username: "bob", Avatar: &avatar})
	store.PutProfile(models.Profile{ID: "carol", Username: "carol"})
	return fixture{
		store: store,
		blobs: blobs,
		svc:   NewChatService(store, store, store, blobs, opts...),
	}
}

func (f fixture) chat(t *testing.T, a, b string) string {
	t.Helper()
	chat, err := f.svc.ResolveChat(context.Background(), a, b)
	require.NoError(t, err)
	return chat.ID
}

func (f fixture) send(t *testing.T, chatID, sender string, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg, err := f.svc.SendMessage(context.Background(), chatID, sender, "msg "+strconv.Itoa(i))
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func findSummary(list []models.ChatSummary, chatID string) (models.ChatSummary, bool) {
	for _, s := range list {
		if s.ChatID == chatID {
			return s, true
		}
	}
	return models.ChatSummary{}, false
}

func TestResolveChatIsSymmetricAndStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ab, err := f.svc.ResolveChat(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := f.svc.ResolveChat(ctx, "bob", "alice")
	require.NoError(t, err)
	again, err := f.svc.ResolveChat(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, ab.ID, again.ID)
	assert.Equal(t, models.PairKey("bob", "alice"), ab.PairKey)

	ac, err := f.svc.ResolveChat(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.NotEqual(t, ab.ID, ac.ID)
}

func TestResolveChatRejectsSelfAndBlank(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveChat(context.Background(), "alice", "alice")
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.ResolveChat(context.Background(), "alice", " ")
	assert.True(t, apperr.IsValidation(err))
}

func TestResolveChatConcurrentCallersShareOneChat(t *testing.T) {
	f := newFixture(t)

	const workers = 32
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			chat, err := f.svc.ResolveChat(context.Background(), a, b)
			ids[i], errs[i] = chat.ID, err
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	chats, err := f.store.ListUserChats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, chatID, "alice", "   ")
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.SendMessage(ctx, "missing", "alice", "hi")
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.SendMessage(ctx, chatID, "carol", "hi")
	assert.True(t, apperr.IsNotFound(err))

	msg, err := f.svc.SendMessage(ctx, chatID, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, models.KindText, msg.Kind)
	assert.False(t, msg.IsRead)
	assert.False(t, msg.IsAttachment)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestListMessagesPaginatesNewestFirstWithoutGapsOrRepeats(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	sent := f.send(t, chatID, "alice", 25)
	ctx := context.Background()

	var (
		cursor *time.Time
		seen   []models.Message
	)
	for page := 0; page < 5; page++ {
		msgs, err := f.svc.ListMessages(ctx, chatID, "bob", cursor, 10)
		require.NoError(t, err)
		if len(msgs) == 0 {
			break
		}
		for i := 1; i < len(msgs); i++ {
			assert.True(t, msgs[i-1].CreatedAt.After(msgs[i].CreatedAt), "page must be strictly newest first")
		}
		if cursor != nil {
			assert.True(t, msgs[0].CreatedAt.Before(*cursor), "page must be strictly older than the cursor")
		}
		seen = append(seen, msgs...)
		last := msgs[len(msgs)-1].CreatedAt
		cursor = &last
	}

	require.Len(t, seen, len(sent))
	ids := make(map[string]struct{}, len(seen))
	for _, m := range seen {
		ids[m.ID] = struct{}{}
	}
	assert.Len(t, ids, len(sent))
	assert.Equal(t, sent[len(sent)-1].ID, seen[0].ID)
	assert.Equal(t, sent[0].ID, seen[len(seen)-1].ID)
}

func TestListMessagesDefaultAndClampedLimit(t *testing.T) {
	f := newFixture(t, WithMaxPageLimit(15))
	chatID := f.chat(t, "alice", "bob")
	f.send(t, chatID, "alice", 30)

	msgs, err := f.svc.ListMessages(context.Background(), chatID, "alice", nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 15)

	f = newFixture(t)
	chatID = f.chat(t, "alice", "bob")
	f.send(t, chatID, "alice", 30)
	msgs, err = f.svc.ListMessages(context.Background(), chatID, "alice", nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultPageLimit)
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")

	_, err := f.svc.ListMessages(context.Background(), chatID, "carol", nil, 20)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.ListMessages(context.Background(), "nope", "alice", nil, 20)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListMessagesMarksPeerMessagesReadOnly(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	ctx := context.Background()
	f.send(t, chatID, "alice", 3)
	f.send(t, chatID, "bob", 2)

	page, err := f.svc.ListMessages(ctx, chatID, "bob", nil, 20)
	require.NoError(t, err)
	require.Len(t, page, 5)
	for _, m := range page {
		assert.False(t, m.IsRead, "page reflects state before marking")
	}

	page, err = f.svc.ListMessages(ctx, chatID, "bob", nil, 20)
	require.NoError(t, err)
	for _, m := range page {
		if m.SenderID == "alice" {
			assert.True(t, m.IsRead)
		} else {
			assert.False(t, m.IsRead, "own messages are never marked by the sender")
		}
	}

	n, err := f.svc.MarkAsRead(ctx, chatID, "bob")
	require.NoError(t, err)
	assert.Zero(t, n, "marking is idempotent")

	n, err = f.svc.MarkAsRead(ctx, chatID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMarkAsReadCountsAndMonotonicity(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	ctx := context.Background()
	f.send(t, chatID, "alice", 4)

	n, err := f.svc.MarkAsRead(ctx, chatID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	f.send(t, chatID, "alice", 1)
	n, err = f.svc.MarkAsRead(ctx, chatID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := f.store.ListMessages(ctx, repositories.MessageWindow{ChatID: chatID})
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
	}

	_, err = f.svc.MarkAsRead(ctx, chatID, "carol")
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteChatForUserHidesHistoryOnlyForThatUser(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	ctx := context.Background()
	f.send(t, chatID, "alice", 3)

	horizon, err := f.svc.DeleteChatForUser(ctx, "bob", chatID)
	require.NoError(t, err)
	assert.False(t, horizon.IsZero())

	bobView, err := f.svc.ListMessages(ctx, chatID, "bob", nil, 20)
	require.NoError(t, err)
	assert.Empty(t, bobView)

	aliceView, err := f.svc.ListMessages(ctx, chatID, "alice", nil, 20)
	require.NoError(t, err)
	assert.Len(t, aliceView, 3)

	after := f.send(t, chatID, "alice", 1)[0]
	bobView, err = f.svc.ListMessages(ctx, chatID, "bob", nil, 20)
	require.NoError(t, err)
	require.Len(t, bobView, 1)
	assert.Equal(t, after.ID, bobView[0].ID)
	for _, m := range bobView {
		assert.True(t, m.CreatedAt.After(horizon))
	}

	second, err := f.svc.DeleteChatForUser(ctx, "bob", chatID)
	require.NoError(t, err)
	assert.True(t, second.After(horizon), "deleting again moves the horizon forward")

	_, err = f.svc.DeleteChatForUser(ctx, "carol", chatID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestHorizonHidesOldMessagesFromReadMarking(t *testing.T) {
	f := newFixture(t)
	chatID := f.chat(t, "alice", "bob")
	ctx := context.Background()
	f.send(t, chatID, "alice", 2)

	_, err := f.svc.DeleteChatForUser(ctx, "bob", chatID)
	require.NoError(t, err)

	n, err := f.svc.MarkAsRead(ctx, chatID, "bob")
	require.NoError(t, err)
	assert.Zero(t, n, "messages before the horizon are not touched")
}

func TestListChatsAggregatesSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab := f.chat(t, "alice", "bob")
	ac := f.chat(t, "alice", "carol")
	f.send(t, ab, "bob", 3)
	last := f.send(t, ab, "alice", 1)[0]

	list, err := f.svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ac, list[0].ChatID, "newest chat first")
	assert.Equal(t, ab, list[1].ChatID)

	withBob := list[1]
	assert.Equal(t, "bob", withBob.PeerID)
	assert.Equal(t, "bob", withBob.PeerUsername)
	assert.Equal(t, blobBase+"/avatars/users/bob.png", withBob.PeerAvatarURL)
	assert.Equal(t, 3, withBob.UnreadCount)
	require.NotNil(t, withBob.LastMessageContent)
	assert.Equal(t, last.Content, *withBob.LastMessageContent)
	assert.Equal(t, models.KindText, *withBob.LastMessageKind)
	assert.Equal(t, "alice", *withBob.LastSenderID)
	assert.True(t, last.CreatedAt.Equal(*withBob.LastMessageAt))

	withCarol := list[0]
	assert.Equal(t, "", withCarol.PeerAvatarURL)
	assert.Nil(t, withCarol.LastMessageContent)
	assert.Zero(t, withCarol.UnreadCount)

	bobList, err := f.svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, 1, bobList[0].UnreadCount)
}

func TestListChatsOmitsDanglingPeerProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chat(t, "alice", "ghost")
	ab := f.chat(t, "alice", "bob")

	list, err := f.svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ab, list[0].ChatID)
}

func TestListChatsHonoursHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab := f.chat(t, "alice", "bob")
	f.send(t, ab, "alice", 2)

	_, err := f.svc.DeleteChatForUser(ctx, "bob", ab)
	require.NoError(t, err)

	bobList, err := f.svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobList, "deleted chat stays hidden until a new message arrives")

	aliceList, err := f.svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceList, 1)

	f.send(t, ab, "alice", 1)
	bobList, err = f.svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, 1, bobList[0].UnreadCount, "only messages after the horizon count")
}

func TestListChatsEmpty(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = f.svc.ListChats(context.Background(), "")
	assert.True(t, apperr.IsValidation(err))
}

func TestGetPeer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab := f.chat(t, "alice", "bob")

	peer, err := f.svc.GetPeer(ctx, ab, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.Peer{PeerID: "bob", Username: "bob", AvatarURL: blobBase + "/avatars/users/bob.png"}, peer)

	peer, err = f.svc.GetPeer(ctx, ab, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", peer.PeerID)
	assert.Equal(t, "", peer.AvatarURL)

	_, err = f.svc.GetPeer(ctx, ab, "carol")
	assert.True(t, apperr.IsNotFound(err))

	ghost := f.chat(t, "alice", "ghost")
	_, err = f.svc.GetPeer(ctx, ghost, "alice")
	assert.True(t, apperr.IsNotFound(err))
}

func TestConversationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chatID := f.chat(t, "alice", "bob")
	f.send(t, chatID, "alice", 3)

	bobList, err := f.svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, 3, bobList[0].UnreadCount)

	page, err := f.svc.ListMessages(ctx, chatID, "bob", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	bobList, err = f.svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bobList[0].UnreadCount, "listing marks the whole visibility window read")

	reply, err := f.svc.SendMessage(ctx, chatID, "bob", "hey")
	require.NoError(t, err)

	aliceList, err := f.svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.Equal(t, 1, aliceList[0].UnreadCount)
	assert.NotEmpty(t, reply.ID)
	assert.Equal(t, "hey", *aliceList[0].LastMessageContent)

	_, err = f.svc.DeleteChatForUser(ctx, "alice", chatID)
	require.NoError(t, err)
	aliceList, err = f.svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceList)

	all, err := f.svc.ListMessages(ctx, chatID, "bob", nil, 50)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	got := make([]string, 0, len(all))
	for _, m := range all {
		got = append(got, m.Content)
	}
	want := []string{"hey", "msg 2", "msg 1", "msg 0"}
	assert.Equal(t, want, got)
	assert.True(t, sort.SliceIsSorted(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) }))
}
