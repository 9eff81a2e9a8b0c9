package session

import (
	"sync"
	"time"

	"github.com/mrseyes/icebot/internal/models"
)

// Store хранит по одной изменяемой сессии на покупателя и сериализует
// доступ к каждой из них: на один chatID - не больше одной мутации
// одновременно.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*models.Session
	locks    map[int64]*sync.Mutex
	now      func() time.Time
}

// NewStore создаёт пустое хранилище сессий.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*models.Session),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

// Acquire возвращает сессию покупателя, при необходимости создавая пустую,
// и захватывает её монопольно. Освобождение - через возвращённую функцию.
// Каждый захват обновляет LastActiveAt.
func (st *Store) Acquire(chatID int64) (*models.Session, func()) {
	st.mu.Lock()
	s, ok := st.sessions[chatID]
	if !ok {
		s = &models.Session{ChatID: chatID, Step: models.StepIdle}
		st.sessions[chatID] = s
	}
	lock, ok := st.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		st.locks[chatID] = lock
	}
	st.mu.Unlock()

	lock.Lock()
	s.LastActiveAt = st.now()
	return s, lock.Unlock
}

// Clear сбрасывает сессию покупателя до пустого состояния.
// Вызывающий уже должен владеть сессией через Acquire.
func (st *Store) Clear(chatID int64) {
	st.mu.Lock()
	s, ok := st.sessions[chatID]
	st.mu.Unlock()
	if ok {
		s.Reset()
	}
}

// Sweep удаляет сессии, простаивающие дольше maxIdle, и возвращает
// число удалённых. Занятые в данный момент сессии пропускаются.
func (st *Store) Sweep(maxIdle time.Duration) int {
	cutoff := st.now().Add(-maxIdle)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for chatID, s := range st.sessions {
		if !s.LastActiveAt.Before(cutoff) {
			continue
		}
		lock := st.locks[chatID]
		if !lock.TryLock() {
			continue
		}
		delete(st.sessions, chatID)
		delete(st.locks, chatID)
		lock.Unlock()
		removed++
	}
	return removed
}

// Len возвращает число живых сессий.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
