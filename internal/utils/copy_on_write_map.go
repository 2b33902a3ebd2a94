package utils

import (
	"sync"
	"sync/atomic"
)

// CopyOnWriteMap provides basic functionality of a copy-on-write dictionary
// that uses a valueCreator function (instead of a value like sync.Map)
type CopyOnWriteMap struct {
	m  atomic.Value // Map
	mu sync.Mutex
}

func NewCopyOnWriteMap() *CopyOnWriteMap {
	c := &CopyOnWriteMap{
		m:  atomic.Value{},
		mu: sync.Mutex{},
	}

	c.m.Store(make(map[interface{}]interface{}))
	return c
}

// LoadOrStore returns the existing value for the key when present. Otherwise
// it invokes valueCreator under the write lock and stores the result; a
// creator error leaves the map untouched (nothing is memoized on failure).
func (c *CopyOnWriteMap) LoadOrStore(key interface{}, valueCreator func() (interface{}, error)) (value interface{}, loaded bool, err error) {
	existingMap := c.m.Load().(map[interface{}]interface{})
	if v, ok := existingMap[key]; ok {
		return v, true, nil
	}

	defer c.mu.Unlock()
	c.mu.Lock()

	// Re check after acquiring the lock
	existingMap = c.m.Load().(map[interface{}]interface{})
	if v, ok := existingMap[key]; ok {
		return v, true, nil
	}

	newValue, err := valueCreator()
	if err != nil {
		return nil, false, err
	}

	// Shallow copy existing
	newMap := make(map[interface{}]interface{}, len(existingMap)+1)
	for k, v := range existingMap {
		newMap[k] = v
	}

	newMap[key] = newValue
	c.m.Store(newMap)

	return newValue, false, nil
}

// Delete removes the key, returning the value it held.
func (c *CopyOnWriteMap) Delete(key interface{}) (value interface{}, found bool) {
	defer c.mu.Unlock()
	c.mu.Lock()

	existingMap := c.m.Load().(map[interface{}]interface{})
	value, found = existingMap[key]
	if !found {
		return nil, false
	}

	newMap := make(map[interface{}]interface{}, len(existingMap)-1)
	for k, v := range existingMap {
		if k != key {
			newMap[k] = v
		}
	}
	c.m.Store(newMap)

	return value, true
}

// Keys returns a snapshot of the stored keys.
func (c *CopyOnWriteMap) Keys() []interface{} {
	existingMap := c.m.Load().(map[interface{}]interface{})
	result := make([]interface{}, 0, len(existingMap))
	for k := range existingMap {
		result = append(result, k)
	}
	return result
}
