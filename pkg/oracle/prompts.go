package oracle

import (
	"fmt"
	"strings"

	"github.com/sells-group/orderdesk-cli/internal/model"
)

const classifySystemPrompt = `You classify customer emails for a fashion retailer. Detect whether the email contains an order request, a product inquiry, or both, and extract every product mention. Respond with a valid JSON object:
{"has_order": <bool>, "has_inquiry": <bool>, "mentions": [{"product_id": "<id or empty>", "name": "<name or empty>", "description": "<free text>", "category": "<category or empty>", "quantity": <int, 0 if unstated>, "excerpt": "<verbatim quote>"}], "inquiries": ["<question>"]}
A mention belongs in "mentions" only when the customer wants to buy it. Questions about products go in "inquiries".`

const adviseSystemPrompt = `You are a product specialist for a fashion retailer. Answer the customer's questions using only the product data provided. Be factual and concise; if the data does not answer a question, say so plainly.`

const composeSystemPrompt = `You write replies to customers of a fashion retailer. Write a professional, production-ready email body in the tone the customer used. Address every point in the processing outcome: confirm created order lines with prices, explain out-of-stock items and offer the listed alternatives, ask for clarification on anything unresolved, and include the inquiry answer when one is provided. Do not invent products, prices, or stock. Respond with the email body only.`

func classifyPrompt(email model.Email) string {
	return fmt.Sprintf("Email %s\nSubject: %s\n\n%s", email.RequestID, email.Subject, email.Body)
}

func advisePrompt(email model.Email, inquiries []string, candidates []model.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer email:\nSubject: %s\n%s\n", email.Subject, email.Body)

	if len(inquiries) > 0 {
		b.WriteString("\nQuestions:\n")
		for _, q := range inquiries {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	b.WriteString("\nProduct data:\n")
	if len(candidates) == 0 {
		b.WriteString("(no matching products found)\n")
	}
	seen := make(map[string]bool)
	for _, c := range candidates {
		p := c.Product
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		fmt.Fprintf(&b, "- %s %s (%s): %s | price %.2f | stock %d | seasons %s\n",
			p.ID, p.Name, p.Category, p.Description, p.Price, p.Stock, strings.Join(p.Seasons, "/"))
		if p.Promotion != "" {
			fmt.Fprintf(&b, "  promotion: %s\n", p.Promotion)
		}
	}
	return b.String()
}

func composePrompt(in ComposeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer email:\nSubject: %s\n%s\n", in.Email.Subject, in.Email.Body)
	fmt.Fprintf(&b, "\nCategory: %s\n", in.Category)

	if o := in.Order; o != nil {
		fmt.Fprintf(&b, "\nOrder outcome (status %s, total %.2f", o.Status, o.TotalPrice)
		if o.TotalDiscount > 0 {
			fmt.Fprintf(&b, ", discount %.2f", o.TotalDiscount)
		}
		b.WriteString("):\n")
		for _, l := range o.Lines {
			fmt.Fprintf(&b, "- %s x%d %s: %s", l.ProductID, l.Quantity, l.Description, l.Status)
			if l.Status == model.LineStatusCreated {
				fmt.Fprintf(&b, " | unit %.2f | line total %.2f", l.UnitPrice, l.TotalPrice)
				if l.PromotionApplied {
					fmt.Fprintf(&b, " | promotion: %s", l.PromotionDescription)
				}
			}
			b.WriteString("\n")
			for _, alt := range l.Alternatives {
				fmt.Fprintf(&b, "  alternative: %s %s at %.2f (%d in stock)\n",
					alt.Product.ID, alt.Product.Name, alt.Product.Price, alt.Product.Stock)
			}
		}
		for _, m := range o.Unresolved {
			fmt.Fprintf(&b, "- could not identify: %q\n", m.Description)
		}
	}

	if in.Advice != "" {
		fmt.Fprintf(&b, "\nInquiry answer to include:\n%s\n", in.Advice)
	}
	return b.String()
}
