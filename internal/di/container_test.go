package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerRegisterAndGet(t *testing.T) {
	c := NewContainer()
	assert.Nil(t, c.Get(ServiceLLM))
	assert.False(t, c.Has(ServiceLLM))

	c.Register(ServiceSession, "sessions")
	c.Register(ServiceLLM, 42)

	assert.True(t, c.Has(ServiceLLM))
	assert.Equal(t, 42, c.Get(ServiceLLM))
	assert.Equal(t, []string{ServiceLLM, ServiceSession}, c.GetNames())

	c.Remove(ServiceLLM)
	assert.False(t, c.Has(ServiceLLM))

	c.Clear()
	assert.Empty(t, c.GetNames())
}

func TestGetContainerIsSingleton(t *testing.T) {
	assert.Same(t, GetContainer(), GetContainer())
}
