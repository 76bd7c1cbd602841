package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/validation"
)

func TestImportCSV(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := `isbn,title,author,genre,total_copies
9780441013593,Dune,Frank Herbert,SF,3
,Nameless,Someone,Drama,2
9780553283686,Hyperion,Dan Simmons,SF,zero
9780316769488, The Catcher in the Rye ,J. D. Salinger,Fiction,1
`
	report, err := ImportCSV(ctx, svc, strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, report.Imported, 2)
	require.Len(t, report.Rejected, 2)

	assert.Equal(t, 3, report.Rejected[0].Line)
	var verr *validation.ValidationError
	require.ErrorAs(t, report.Rejected[0].Err, &verr)
	assert.True(t, verr.Has("isbn"))
	assert.Equal(t, 4, report.Rejected[1].Line)
	assert.Contains(t, report.Rejected[1].Error(), "total_copies")

	book, err := svc.GetBook(ctx, report.Imported[1])
	require.NoError(t, err)
	assert.Equal(t, "The Catcher in the Rye", book.Title)
	assert.Equal(t, 1, book.AvailableCopies)
}

func TestImportCSVRequiresColumns(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := ImportCSV(context.Background(), svc, strings.NewReader("title,author\nDune,Herbert\n"))
	assert.ErrorContains(t, err, `missing column "genre"`)
}
