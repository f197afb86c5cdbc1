package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswers(t *testing.T) {
	answers, err := parseAnswers("0;1, 2;")
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, []int{0}, answers[0].Choices)
	assert.Equal(t, []int{1, 2}, answers[1].Choices)
	assert.Empty(t, answers[2].Choices)

	_, err = parseAnswers("0;x")
	assert.Error(t, err)
}
