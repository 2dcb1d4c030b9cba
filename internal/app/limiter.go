package app

import "sync"

// ClassLimiter не даёт двум сохранениям одного журнала (школа, дата, класс)
// выполняться одновременно в пределах процесса. Между процессами порядок
// обеспечивает уникальный ключ в БД.
type ClassLimiter struct {
	mu    sync.Mutex
	byKey map[string]*classLock
}

type classLock struct {
	mu   sync.Mutex
	refs int
}

func NewClassLimiter() *ClassLimiter {
	return &ClassLimiter{byKey: make(map[string]*classLock)}
}

func (l *ClassLimiter) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.byKey[key]
	if !ok {
		m = &classLock{}
		l.byKey[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}
}

func classKey(schoolID, date, grade, className string) string {
	return schoolID + "|" + date + "|" + grade + "|" + className
}
