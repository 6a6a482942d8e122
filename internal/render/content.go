// Package render turns a contract snapshot plus its signatures into the
// canonical document content, fixed-layout bytes, and the two fingerprints
// that protect them: a content hash over the logical document and an
// artifact hash over the exact rendered bytes.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/rentline-backend/internal/platform/canonhash"
)

// DeterminismVersion is folded into the content hash so layout-affecting
// changes to this package invalidate old fingerprints instead of silently
// colliding with them.
const DeterminismVersion = "v1"

// SignatureSlot is one party's signature as it appears in the document.
type SignatureSlot struct {
	Role       string    `json:"role"`
	SignerName string    `json:"signer_name"`
	SignedAt   time.Time `json:"signed_at"`
	ImageHash  string    `json:"image_hash"`

	// ImagePNG is drawn into the signature block when present. The bytes
	// are not part of the canonical content; ImageHash stands in for them.
	ImagePNG []byte `json:"-"`
}

// ContractInput is the logical snapshot the renderer consumes. Everything
// volatile (render clock, process identity) stays out of this struct.
type ContractInput struct {
	Code  string `json:"code"`
	Title string `json:"title"`

	LandlordName     string `json:"landlord_name"`
	LandlordIDNumber string `json:"landlord_id_number"`
	TenantName       string `json:"tenant_name"`
	TenantIDNumber   string `json:"tenant_id_number"`

	PropertyRef     string `json:"property_ref"`
	PropertyAddress string `json:"property_address"`

	MonthlyRent   float64 `json:"monthly_rent"`
	DepositAmount float64 `json:"deposit_amount"`
	Currency      string  `json:"currency"`
	PaymentDay    int     `json:"payment_day"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	HouseRules []string `json:"house_rules,omitempty"`

	Signatures []SignatureSlot `json:"signatures"`
}

// Article is one numbered section of the canonical document.
type Article struct {
	Number  int      `json:"number"`
	Heading string   `json:"heading"`
	Lines   []string `json:"lines"`
}

// Content is the canonical document: what gets hashed and what gets drawn.
type Content struct {
	Version    string          `json:"version"`
	Header     []string        `json:"header"`
	Articles   []Article       `json:"articles"`
	Signatures []SignatureSlot `json:"signatures"`
	Footer     []string        `json:"footer"`
}

// NormalizeText collapses runs of whitespace and trims the ends, so that
// formatting-only differences in input never change the content hash.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BuildContent assembles the bilingual canonical document. The same input
// always produces the same content.
func BuildContent(in ContractInput) Content {
	c := Content{
		Version: DeterminismVersion,
		Header: []string{
			"CONG HOA XA HOI CHU NGHIA VIET NAM",
			"Doc lap - Tu do - Hanh phuc",
			"SOCIALIST REPUBLIC OF VIET NAM",
			"Independence - Freedom - Happiness",
			"",
			"HOP DONG THUE NHA / RESIDENTIAL LEASE AGREEMENT",
			NormalizeText(in.Title),
			fmt.Sprintf("So / No: %s", NormalizeText(in.Code)),
		},
	}

	c.Articles = append(c.Articles,
		Article{
			Number:  1,
			Heading: "Doi tuong cua hop dong / Subject of the contract",
			Lines: []string{
				fmt.Sprintf("Ben cho thue / Landlord: %s (CCCD/ID: %s)", NormalizeText(in.LandlordName), NormalizeText(in.LandlordIDNumber)),
				fmt.Sprintf("Ben thue / Tenant: %s (CCCD/ID: %s)", NormalizeText(in.TenantName), NormalizeText(in.TenantIDNumber)),
				fmt.Sprintf("Tai san thue / Leased property: %s", NormalizeText(in.PropertyAddress)),
				fmt.Sprintf("Ma tin dang / Listing reference: %s", NormalizeText(in.PropertyRef)),
			},
		},
		Article{
			Number:  2,
			Heading: "Thoi han thue / Term of lease",
			Lines: []string{
				fmt.Sprintf("Tu ngay / From: %s", in.StartDate.UTC().Format("02/01/2006")),
				fmt.Sprintf("Den ngay / To: %s", in.EndDate.UTC().Format("02/01/2006")),
			},
		},
		Article{
			Number:  3,
			Heading: "Gia thue va thanh toan / Rent and payment",
			Lines: []string{
				fmt.Sprintf("Gia thue hang thang / Monthly rent: %s %s", formatAmount(in.MonthlyRent), in.Currency),
				fmt.Sprintf("Tien dat coc / Deposit: %s %s", formatAmount(in.DepositAmount), in.Currency),
				fmt.Sprintf("Ngay thanh toan hang thang / Payment day: %d", in.PaymentDay),
			},
		},
		Article{
			Number:  4,
			Heading: "Quyen va nghia vu cua ben cho thue / Rights and obligations of the landlord",
			Lines: []string{
				"Ban giao tai san dung thoa thuan / Deliver the property as agreed.",
				"Bao dam quyen su dung on dinh / Guarantee undisturbed use for the term.",
				"Bao tri ket cau chinh cua tai san / Maintain the structural condition of the property.",
			},
		},
		Article{
			Number:  5,
			Heading: "Quyen va nghia vu cua ben thue / Rights and obligations of the tenant",
			Lines: []string{
				"Thanh toan day du va dung han / Pay rent in full and on time.",
				"Su dung tai san dung muc dich / Use the property for its agreed purpose.",
				"Hoan tra tai san khi het han / Return the property at the end of the term.",
			},
		},
	)

	if len(in.HouseRules) > 0 {
		rules := make([]string, 0, len(in.HouseRules))
		for _, r := range in.HouseRules {
			if n := NormalizeText(r); n != "" {
				rules = append(rules, n)
			}
		}
		c.Articles = append(c.Articles, Article{
			Number:  6,
			Heading: "Noi quy su dung / House rules",
			Lines:   rules,
		})
	}

	c.Articles = append(c.Articles, Article{
		Number:  len(c.Articles) + 1,
		Heading: "Dieu khoan chung / General terms",
		Lines: []string{
			"Hop dong co hieu luc khi ca hai ben ky / The contract takes effect once both parties have signed.",
			"Tranh chap duoc giai quyet theo phap luat Viet Nam / Disputes are resolved under the law of Viet Nam.",
			"Hop dong duoc ky dien tu va luu tru 10 nam / Signed electronically and retained for 10 years.",
		},
	})

	c.Signatures = canonicalSignatures(in.Signatures)
	c.Footer = []string{
		fmt.Sprintf("Ma xac thuc / Verification code: %s", NormalizeText(in.Code)),
		"Van ban nay duoc tao va ky dien tu / This document was generated and signed electronically.",
	}
	return c
}

// ContentHash fingerprints the canonical content. It is stable across
// renders of the same logical contract and signature set.
func ContentHash(c Content) (string, error) {
	return canonhash.Hash(c)
}

func canonicalSignatures(slots []SignatureSlot) []SignatureSlot {
	out := make([]SignatureSlot, len(slots))
	copy(out, slots)
	// Landlord before tenant, stable regardless of signing order.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Role < out[i].Role {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	for i := range out {
		out[i].SignerName = NormalizeText(out[i].SignerName)
		out[i].SignedAt = out[i].SignedAt.UTC()
	}
	return out
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
