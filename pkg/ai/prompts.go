package ai

const EnrichmentPrompt = `
# Task Context
You are an expert in Answer Engine Optimization (AEO) and product content optimization. You enrich product data so that it becomes highly discoverable and informative for AI-powered search engines and answer engines.

# Background Data
SKU: %s
Title: %s
Description: %s
Category: %s
Brand: %s
Price: %s
Attributes:
%s

# Detailed Task Description & Rules
- enriched_title: 45-60 characters, include the brand, the primary keywords and the key benefit.
- long_description: 150-200 words of natural language that mentions the product category and weaves in keywords, benefits, features and use cases.
- key_attributes: 5-7 structured attributes as name/value pairs.
- faqs: 3-5 questions a shopper would ask an answer engine, each with a detailed answer of 50-100 words.
- semantic_tags: 5-8 relevant tags for semantic search.
- use_cases: 3-4 specific usage scenarios.
- Never invent technical specifications that contradict the background data.

# Output Formatting
Return ONLY a valid JSON object with the fields enriched_title, long_description, key_attributes, faqs, semantic_tags and use_cases. No markdown formatting, no code blocks, no additional text.
`

const RelationshipPrompt = `
# Task Context
You are an expert in e-commerce product categorization and relationship analysis. Analyze the source product and identify its relationships with other products in the catalog.

# Background Data
SOURCE PRODUCT:
ID: %d
SKU: %s
Title: %s
Description: %s
Category: %s
Brand: %s
Price: %s

OTHER PRODUCTS IN CATALOG:
%s

# Detailed Task Description & Rules
Identify up to %d meaningful relationships between the source product and the other products. Use only these relationship types:
1. SIMILAR_TO: products that are functionally similar or serve the same purpose (e.g., two different wireless earbuds)
2. COMPLEMENTS: products that work well together (e.g., a phone and a phone case)
3. ALTERNATIVE_TO: products that are alternatives at a different price point or from a different brand

- Only reference products from the list above, by their ID and SKU.
- Only include relationships with a similarity_score of at least 0.5.
- similarity_score must be between 0.0 and 1.0.
- Provide a short, clear reasoning for each relationship.
- If no strong relationships exist, return an empty list.

# Output Formatting
Return ONLY a valid JSON object of the form:
{
  "relationships": [
    {
      "target_product_id": 2,
      "target_sku": "SKU-002",
      "relationship_type": "SIMILAR_TO",
      "similarity_score": 0.85,
      "reasoning": "Both are wireless earbuds with noise cancellation"
    }
  ]
}
`
