package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

const (
	// MaxTextLen is the longest content Notion accepts in one text object.
	MaxTextLen = 2000
	// MaxChildren is the most blocks one create-page request may carry.
	MaxChildren = 100
)

// Text splits s into rich text objects no longer than MaxTextLen runes.
func Text(s string) []notionapi.RichText {
	runes := []rune(s)
	out := make([]notionapi.RichText, 0, len(runes)/MaxTextLen+1)
	for len(runes) > 0 {
		n := min(len(runes), MaxTextLen)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

// TitleProperty builds a title property.
func TitleProperty(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: Text(s)}
}

// RichTextProperty builds a rich text property.
func RichTextProperty(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: Text(s)}
}

// MarkdownBlocks converts simple Markdown into Notion blocks: "#" to "###"
// headings, "-" or "*" bullets, and blank-line separated paragraphs. Output
// is capped at MaxChildren blocks.
func MarkdownBlocks(md string) []notionapi.Block {
	var (
		blocks []notionapi.Block
		para   []string
	)
	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, Paragraph(strings.Join(para, " ")))
			para = nil
		}
	}

	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "### "):
			flush()
			blocks = append(blocks, heading(3, line[4:]))
		case strings.HasPrefix(line, "## "):
			flush()
			blocks = append(blocks, heading(2, line[3:]))
		case strings.HasPrefix(line, "# "):
			flush()
			blocks = append(blocks, heading(1, line[2:]))
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			flush()
			blocks = append(blocks, Bullet(line[2:]))
		default:
			para = append(para, line)
		}
	}
	flush()

	if len(blocks) > MaxChildren {
		blocks = blocks[:MaxChildren]
	}
	return blocks
}

// Paragraph builds a paragraph block.
func Paragraph(s string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: Text(s)},
	}
}

// Bullet builds a bulleted list item block.
func Bullet(s string) notionapi.Block {
	return &notionapi.BulletedListItemBlock{
		BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
		BulletedListItem: notionapi.ListItem{RichText: Text(s)},
	}
}

func heading(level int, s string) notionapi.Block {
	h := notionapi.Heading{RichText: Text(strings.TrimSpace(s))}
	switch level {
	case 1:
		return &notionapi.Heading1Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading1},
			Heading1:   h,
		}
	case 2:
		return &notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
			Heading2:   h,
		}
	default:
		return &notionapi.Heading3Block{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading3},
			Heading3:   h,
		}
	}
}
