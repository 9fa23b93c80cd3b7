package candidatehash

import (
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDescriptor(paraID uint32) CandidateDescriptor {
	return CandidateDescriptor{ParaID: types.U32(paraID)}
}

func sampleCommitments(headData byte) CandidateCommitments {
	return CandidateCommitments{HeadData: []byte{headData}}
}

func TestHashIsDeterministic(t *testing.T) {
	d := sampleDescriptor(100)
	c := sampleCommitments(1)

	h1, err := Hash(d, c)
	require.NoError(t, err)
	h2, err := Hash(d, c)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestHashDiffersOnDescriptorChange(t *testing.T) {
	c := sampleCommitments(1)

	h1, err := Hash(sampleDescriptor(100), c)
	require.NoError(t, err)
	h2, err := Hash(sampleDescriptor(101), c)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHashDiffersOnCommitmentsChange(t *testing.T) {
	d := sampleDescriptor(100)

	h1, err := Hash(d, sampleCommitments(1))
	require.NoError(t, err)
	h2, err := Hash(d, sampleCommitments(2))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
