package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksCompensationArticlesFirst(t *testing.T) {
	r := NewRetriever()

	passages, err := r.Search(context.Background(), "经济补偿金 裁员 劳动合同法 规定", 5)
	require.NoError(t, err)
	require.NotEmpty(t, passages)

	assert.Equal(t, "《中华人民共和国劳动合同法》", passages[0].Source)
	assert.Contains(t, []string{"第四十六条", "第四十七条"}, passages[0].Article)
	for i := 1; i < len(passages); i++ {
		assert.LessOrEqual(t, passages[i].Score, passages[i-1].Score, "descending score order")
	}
}

func TestSearchHonorsTopK(t *testing.T) {
	r := NewRetriever()

	passages, err := r.Search(context.Background(), "离婚 抚养权 财产分割", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(passages), 2)
}

func TestSearchNoMatchReturnsEmpty(t *testing.T) {
	r := NewRetriever()

	passages, err := r.Search(context.Background(), "quantum chromodynamics", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)

	passages, err = r.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestAddExtendsCorpus(t *testing.T) {
	r := NewRetriever()
	before := r.Len()

	r.Add(Document{
		Source:   "《测试条例》",
		Article:  "第一条",
		Content:  "专门用于检索测试的条文。",
		Keywords: []string{"检索测试"},
	})
	assert.Equal(t, before+1, r.Len())

	passages, err := r.Search(context.Background(), "检索测试", 3)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "《测试条例》", passages[0].Source)
}
