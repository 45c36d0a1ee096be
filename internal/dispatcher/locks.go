package dispatcher

import "sync"

// keyedMutex — таблица мьютексов по строковому ключу.
//
// Сериализует advance одной сессии: ключ — пара (бот, пользователь),
// поэтому дубликаты входящих событий, пришедшие почти одновременно,
// не гоняются за currentNodeId и переменными. Записи со счётчиком
// ссылок, свободные ключи удаляются из таблицы.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lock захватывает мьютекс ключа и возвращает функцию освобождения.
func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
